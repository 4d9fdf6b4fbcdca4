// Package supervisor spawns and tracks one ingestion loop per account.
package supervisor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/darioblanco/pregonero-go/internal/account"
	"github.com/darioblanco/pregonero-go/internal/ingest"
	"github.com/darioblanco/pregonero-go/internal/queue"
)

// Supervisor loads every account at startup and runs one ingest.Loop per
// account concurrently. It never restarts a loop that terminates; a
// crashed loop stays down until the process itself restarts.
type Supervisor struct {
	Store  account.Store
	Queue  queue.Queue
	Logger *logrus.Logger
}

// New builds a Supervisor over the given backing store and queue.
func New(store account.Store, q queue.Queue, logger *logrus.Logger) *Supervisor {
	return &Supervisor{Store: store, Queue: q, Logger: logger}
}

// Run loads every known account and blocks until ctx is cancelled and
// every loop has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := s.Logger.WithField("run_id", runID)

	accounts, err := s.Store.LoadAccountsByHost(ctx, "*")
	if err != nil {
		return err
	}
	log.WithField("accounts", len(accounts)).Info("supervisor: starting ingestion loops")

	var wg sync.WaitGroup
	for _, acc := range accounts {
		acc := acc
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop := ingest.New(acc, s.Store, s.Queue, s.Logger)
			loop.Run(ctx)
			log.WithField("account", acc.Email).Warn("supervisor: ingestion loop terminated, not restarting")
		}()
	}

	wg.Wait()
	log.Info("supervisor: all ingestion loops terminated")
	return nil
}
