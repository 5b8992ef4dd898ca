package publishers

import "context"

// Publisher sends announcement events to a downstream sink (HTTP, SQS, SNS, Pub/Sub, NATS).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}
