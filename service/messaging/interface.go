package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by non-blocking queues that cannot accept more
// messages.
var ErrQueueFull = errors.New("messaging: queue full")

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory is the in-process FIFO queue.
	VendorMemory Vendor = "memory"
	// VendorPriority is the in-process ordered queue.
	VendorPriority Vendor = "priority"
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}

// Sizer is implemented by queues able to report their backlog.
type Sizer interface {
	Size() int
}
