// Package eventbus is the asynchronous seam between the intake API, the
// generation worker, and the outcome reconciler. Delivery is at-least-once:
// consumers must tolerate redelivery and must ack explicitly by returning
// nil from their handler.
package eventbus

import "context"

// Handler processes one delivery. Returning nil acknowledges the message;
// returning an error leaves it pending for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Bus publishes JSON-encoded events to named topics and attaches grouped
// consumers to them. All consumers in a group share the topic's deliveries;
// distinct groups each see every message.
type Bus interface {
	Publish(ctx context.Context, topic string, event any) error
	// Subscribe blocks, delivering messages to h until ctx is cancelled.
	Subscribe(ctx context.Context, topic, group string, h Handler) error
	Close() error
}
