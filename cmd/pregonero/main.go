package main

import (
	"context"

	"github.com/darioblanco/pregonero-go/internal/fixtures"
	"github.com/darioblanco/pregonero-go/internal/queue"
	"github.com/darioblanco/pregonero-go/internal/queue/gcppubsub"
	"github.com/darioblanco/pregonero-go/internal/store"
	"github.com/darioblanco/pregonero-go/internal/supervisor"
	"github.com/darioblanco/pregonero-go/pkg/config"
	"github.com/darioblanco/pregonero-go/pkg/logging"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel)
	logger.WithField("version", cfg.Version).Info("pregonero starting up")

	ctx := context.Background()

	// Initialize the account/cursor store (also the default Queue backend)
	redisStore := store.NewRedisStore(cfg.RedisHost, cfg.RedisPort)
	defer redisStore.Close()

	// Select the Queue backend
	var q queue.Queue = redisStore
	if cfg.QueueBackend == "gcppubsub" {
		pubsubQueue, err := gcppubsub.New(ctx, cfg.GCPProjectID, cfg.GCPPubSubTopic, cfg.GCPCredentialsPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize gcppubsub queue")
		}
		defer pubsubQueue.Close()
		q = pubsubQueue
	}

	// In dev, seed accounts from the fixture file
	if cfg.IsDev() {
		if err := fixtures.Load(ctx, redisStore, logger); err != nil {
			logger.WithError(err).Fatal("failed to load fixtures")
		}
	}

	// Spawn one ingestion loop per account and block until they all exit
	super := supervisor.New(redisStore, q, logger)
	if err := super.Run(ctx); err != nil {
		logger.WithError(err).Fatal("supervisor exited with error")
	}
}
