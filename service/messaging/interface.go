// Package messaging abstracts the queue used to fan pool notifications out to
// listeners.  Implementations exist for in-memory delivery (the default) and
// for a filesystem journal backed by afs, useful when events must survive the
// process.
package messaging

import (
	"context"
)

// Vendor identifies a queue implementation.
type Vendor string

const (
	// VendorMemory delivers messages through an in-process channel.
	VendorMemory Vendor = "memory"

	// VendorFs journals messages to a filesystem location.
	VendorFs Vendor = "fs"
)

// Queue represents an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message.
	Nack(err error) error
}
