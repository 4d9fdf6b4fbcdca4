// Package queue holds the Queue contract the ingestion loop publishes to.
package queue

import (
	"context"

	"github.com/darioblanco/pregonero-go/internal/email"
)

// Topic is the single fixed topic every QueueMessage is published to.
const Topic = "emails"

// Queue publishes a QueueMessage. The contract is fire-and-forget at the
// application level: once Publish returns nil the caller treats the
// message as delivered, with no further acks or retries at this layer.
type Queue interface {
	Publish(ctx context.Context, msg email.QueueMessage) error
}
