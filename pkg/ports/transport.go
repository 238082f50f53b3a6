package ports

import "context"

// Transport carries encoded bus messages to another process.
// Delivery is best effort and ordered per sender.
type Transport interface {
	// Send publishes one encoded message.
	Send(ctx context.Context, data []byte) error

	// Receive returns a channel of incoming encoded messages.
	// The channel is closed when ctx is done or the transport is closed.
	Receive(ctx context.Context) (<-chan []byte, error)

	// Close releases the transport.
	Close() error
}
