package bus

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// Bridge joins a local Bus to a Transport.
// Messages published locally are encoded and sent with the bridge's origin;
// messages received from the transport are published locally, except the
// bridge's own echoes. Received messages are never forwarded again.
type Bridge struct {
	bus       *Bus
	transport ports.Transport
	origin    string
	outbound  map[Type]bool
	logger    *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithOrigin sets the origin tag. Defaults to a random UUID.
func WithOrigin(origin string) BridgeOption {
	return func(br *Bridge) {
		br.origin = origin
	}
}

// WithOutbound restricts forwarding to the given types.
func WithOutbound(types ...Type) BridgeOption {
	return func(br *Bridge) {
		br.outbound = make(map[Type]bool, len(types))
		for _, t := range types {
			br.outbound[t] = true
		}
	}
}

// WithBridgeLogger configures the bridge logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(br *Bridge) {
		br.logger = logger
	}
}

// NewBridge creates a bridge. Nothing flows until Run is called.
func NewBridge(b *Bus, t ports.Transport, opts ...BridgeOption) *Bridge {
	br := &Bridge{
		bus:       b,
		transport: t,
		origin:    uuid.NewString(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(br)
	}
	return br
}

// Origin returns the tag stamped on outgoing messages.
func (br *Bridge) Origin() string {
	return br.origin
}

// Run pumps messages in both directions until ctx is done or the transport's
// receive channel closes.
func (br *Bridge) Run(ctx context.Context) error {
	incoming, err := br.transport.Receive(ctx)
	if err != nil {
		return err
	}

	sub, err := br.bus.SubscribeAll(func(m Message) {
		br.forward(ctx, m)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-incoming:
			if !ok {
				return nil
			}
			br.accept(data)
		}
	}
}

func (br *Bridge) forward(ctx context.Context, m Message) {
	if m.Origin != "" {
		return
	}
	if br.outbound != nil && !br.outbound[m.Type] {
		return
	}
	m.Origin = br.origin
	data, err := Encode(m)
	if err != nil {
		br.logger.Error("bridge encode failed", "type", m.Type, "err", err)
		return
	}
	if err := br.transport.Send(ctx, data); err != nil {
		br.logger.Warn("bridge send failed", "type", m.Type, "err", err)
	}
}

func (br *Bridge) accept(data []byte) {
	m, err := Decode(data)
	if err != nil {
		br.logger.Warn("bridge dropped undecodable message", "err", err)
		return
	}
	if m.Origin == br.origin {
		return
	}
	if m.Origin == "" {
		m.Origin = "remote"
	}
	if err := br.bus.Publish(m); err != nil {
		br.logger.Debug("bridge publish failed", "type", m.Type, "err", err)
	}
}
