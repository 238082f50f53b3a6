package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
)

// Console drives one designer from line commands.
type Console struct {
	designer *arbor.Designer
	handler  IOHandler
	logger   *slog.Logger
	greeting string
}

// Option defines a functional option for configuring the Console.
type Option func(*Console)

// WithInputHandler configures a custom IOHandler. Defaults to a TextHandler
// on Stdin/Stdout.
func WithInputHandler(handler IOHandler) Option {
	return func(c *Console) {
		c.handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithGreeting prints msg once before the first prompt.
func WithGreeting(msg string) Option {
	return func(c *Console) {
		c.greeting = msg
	}
}

// NewConsole creates a console over d.
func NewConsole(d *arbor.Designer, opts ...Option) *Console {
	c := &Console{
		designer: d,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.handler == nil {
		c.handler = NewTextHandler(nil, nil)
	}
	return c
}

// Run reads and executes commands until quit, end of input, an interrupt
// or the end of ctx. Command failures are reported and do not stop the loop.
func (c *Console) Run(ctx context.Context) error {
	signals := NewSignalManager(ctx)
	defer signals.Stop()

	if c.greeting != "" {
		if err := c.handler.Output(ctx, Result{Message: c.greeting}); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}

	for {
		line, err := c.handler.Input(signals.Context())
		if err != nil {
			signals.CheckRace()
			if signals.Interrupted() {
				c.logger.Debug("console interrupted", "err", signals.Context().Err())
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if line == "" {
			continue
		}

		res, err := c.Execute(ctx, line)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			c.logger.Debug("console command failed", "command", res.Command, "err", err)
			res.Error = err.Error()
		}
		if err := c.handler.Output(ctx, res); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
}
