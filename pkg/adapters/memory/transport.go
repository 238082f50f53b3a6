package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrTransportClosed is returned when sending on a closed transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport is one end of an in-process message pipe.
// Messages sent while the other end has no receiver are dropped.
type Transport struct {
	peer *Transport

	mu        sync.Mutex
	receivers map[chan []byte]struct{}
	closed    bool
	buffer    int
}

// NewPipe returns two connected transports. Whatever is sent on one end is
// received on the other.
func NewPipe() (*Transport, *Transport) {
	a := &Transport{receivers: make(map[chan []byte]struct{}), buffer: 64}
	b := &Transport{receivers: make(map[chan []byte]struct{}), buffer: 64}
	a.peer, b.peer = b, a
	return a, b
}

// Send delivers a copy of data to every receiver on the other end.
// A receiver whose buffer is full misses the message.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	t.peer.deliver(data)
	return nil
}

func (t *Transport) deliver(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.receivers {
		msg := append([]byte(nil), data...)
		select {
		case ch <- msg:
		default:
		}
	}
}

// Receive registers a receiver. The channel is closed when ctx is done or
// the transport is closed.
func (t *Transport) Receive(ctx context.Context) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	ch := make(chan []byte, t.buffer)
	t.receivers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		t.drop(ch)
	}()
	return ch, nil
}

func (t *Transport) drop(ch chan []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.receivers[ch]; ok {
		delete(t.receivers, ch)
		close(ch)
	}
}

// Close closes every receiver on this end.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for ch := range t.receivers {
		close(ch)
	}
	t.receivers = make(map[chan []byte]struct{})
	return nil
}
