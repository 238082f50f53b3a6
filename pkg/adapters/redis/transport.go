package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	backend "github.com/redis/go-redis/v9"
)

// ErrTransportClosed is returned when using a closed transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport carries bus messages over a Redis pub/sub channel, one channel
// per document. Every subscriber on the channel receives every message,
// including the sender's own; bridges drop their own echoes by origin.
type Transport struct {
	client  *backend.Client
	channel string

	mu     sync.Mutex
	subs   map[*backend.PubSub]struct{}
	closed bool
}

// NewTransport creates a transport on the channel "<prefix>bus:<document>".
func NewTransport(client *backend.Client, prefix, document string) *Transport {
	return &Transport{
		client:  client,
		channel: prefix + "bus:" + document,
		subs:    make(map[*backend.PubSub]struct{}),
	}
}

// Channel returns the pub/sub channel name.
func (t *Transport) Channel() string {
	return t.channel
}

// Send publishes data on the channel.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	if err := t.client.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Receive subscribes to the channel. It returns once the subscription is
// confirmed, so messages sent afterwards are not missed.
func (t *Transport) Receive(ctx context.Context) (<-chan []byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	ps := t.client.Subscribe(ctx, t.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ps.Close()
		return nil, ErrTransportClosed
	}
	t.subs[ps] = struct{}{}
	t.mu.Unlock()

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer t.drop(ps)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *Transport) drop(ps *backend.PubSub) {
	t.mu.Lock()
	delete(t.subs, ps)
	t.mu.Unlock()
	_ = ps.Close()
}

// Close ends every subscription. The shared client stays open.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subs
	t.subs = make(map[*backend.PubSub]struct{})
	t.mu.Unlock()

	var errs []error
	for ps := range subs {
		errs = append(errs, ps.Close())
	}
	return errors.Join(errs...)
}
