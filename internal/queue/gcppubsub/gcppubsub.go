// Package gcppubsub is an alternate queue.Queue backend, publishing to a
// Google Cloud Pub/Sub topic instead of Redis pub/sub. Selected at
// startup via QUEUE_BACKEND=gcppubsub.
package gcppubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/darioblanco/pregonero-go/internal/email"
	"github.com/darioblanco/pregonero-go/internal/queue"
)

// Queue publishes QueueMessages to a single Pub/Sub topic.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to projectID and resolves (or, if absent, creates) topicID.
// credentialsFile may be empty to use ambient application-default
// credentials.
func New(ctx context.Context, projectID, topicID, credentialsFile string) (*Queue, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcppubsub: new client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcppubsub: check topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gcppubsub: create topic %s: %w", topicID, err)
		}
	}

	return &Queue{client: client, topic: topic}, nil
}

// Publish marshals msg to JSON and publishes it as a single Pub/Sub
// message, blocking until the broker acknowledges it.
func (q *Queue) Publish(ctx context.Context, msg email.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("gcppubsub: marshal: %w", err)
	}

	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("gcppubsub: publish: %w", err)
	}
	return nil
}

// Close stops the topic's publish goroutines and closes the client.
func (q *Queue) Close() error {
	q.topic.Stop()
	return q.client.Close()
}

var _ queue.Queue = (*Queue)(nil)
