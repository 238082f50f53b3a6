package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
)

var (
	// ErrUnknownType is returned for a message type outside the contract.
	ErrUnknownType = errors.New("unknown message type")
	// ErrPayloadMismatch is returned when a payload does not belong to the message type.
	ErrPayloadMismatch = errors.New("payload does not match message type")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("bus closed")
)

// Handler receives delivered messages.
type Handler func(Message)

// Subscription is a live registration on a Bus.
type Subscription interface {
	Unsubscribe()
}

// Bus is an in-process publish/subscribe channel.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*mailbox
	nextID int
	closed bool

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}

	logger    *slog.Logger
	warnDepth int
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger configures the logger used for handler panics and backlog warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMailboxWarning logs a warning whenever a subscriber's backlog reaches depth.
// Zero disables the warning.
func WithMailboxWarning(depth int) Option {
	return func(b *Bus) {
		b.warnDepth = depth
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:      make(map[int]*mailbox),
		logger:    logging.NewNop(),
		warnDepth: 1024,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Validate checks a message against the contract without publishing it.
func Validate(m Message) error {
	if !Known(m.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if m.Payload == nil {
		return fmt.Errorf("%w: %s has no payload", ErrPayloadMismatch, m.Type)
	}
	if v := reflect.ValueOf(m.Payload); v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Errorf("%w: %s has a nil payload", ErrPayloadMismatch, m.Type)
	}
	if got := m.Payload.MessageType(); got != m.Type {
		return fmt.Errorf("%w: %s carries %s", ErrPayloadMismatch, m.Type, got)
	}
	return nil
}

// Publish enqueues m for every current subscriber of its type and returns
// without waiting for delivery. Only contract violations are reported.
// With no subscribers the message is dropped.
func (b *Bus) Publish(m Message) error {
	if err := Validate(m); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, mb := range b.subs {
		if mb.typ != "" && mb.typ != m.Type {
			continue
		}
		b.begin()
		if depth := mb.push(m); b.warnDepth > 0 && depth == b.warnDepth {
			b.logger.Warn("bus subscriber falling behind", "type", m.Type, "depth", depth)
		}
	}
	return nil
}

// Emit publishes a payload wrapped in a message of the matching type.
func (b *Bus) Emit(p Payload) error {
	return b.Publish(New(p))
}

// Subscribe registers fn for every future message of type t.
func (b *Bus) Subscribe(t Type, fn Handler) (Subscription, error) {
	if !Known(t) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return b.subscribe(t, fn)
}

// SubscribeAll registers fn for every future message of any type.
func (b *Bus) SubscribeAll(fn Handler) (Subscription, error) {
	return b.subscribe("", fn)
}

func (b *Bus) subscribe(t Type, fn Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	mb := newMailbox(b, b.nextID, t, fn)
	b.subs[mb.id] = mb
	go mb.run()
	return mb, nil
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	mb, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		mb.stop()
	}
}

// On subscribes a handler typed by payload. The payload type selects the
// message type.
func On[P Payload](b *Bus, fn func(P)) (Subscription, error) {
	var zero P
	t, ok := typeOf(zero)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, zero)
	}
	return b.Subscribe(t, func(m Message) {
		if p, ok := m.Payload.(P); ok {
			fn(p)
		}
	})
}

// typeOf resolves the message type of a payload type without a value.
func typeOf(p Payload) (Type, bool) {
	rt := reflect.TypeOf(p)
	if rt == nil {
		return "", false
	}
	for t, mk := range contract {
		if reflect.TypeOf(mk()) == rt {
			return t, true
		}
	}
	return "", false
}

// Flush blocks until every enqueued message, including messages published by
// handlers while flushing, has been handled. It must not be called from a handler.
func (b *Bus) Flush(ctx context.Context) error {
	b.pendingMu.Lock()
	if b.pending == 0 {
		b.pendingMu.Unlock()
		return nil
	}
	idle := b.idle
	b.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every subscriber. Queued but undelivered messages are discarded.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*mailbox)
	b.mu.Unlock()

	for _, mb := range subs {
		mb.stop()
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) begin() {
	b.pendingMu.Lock()
	if b.pending == 0 {
		b.idle = make(chan struct{})
	}
	b.pending++
	b.pendingMu.Unlock()
}

func (b *Bus) done(n int) {
	if n == 0 {
		return
	}
	b.pendingMu.Lock()
	b.pending -= n
	if b.pending == 0 {
		close(b.idle)
	}
	b.pendingMu.Unlock()
}
