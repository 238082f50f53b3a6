package runner

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Result is what one console command produced.
type Result struct {
	Command  string           `json:"command"`
	Message  string           `json:"message,omitempty"`
	Outline  string           `json:"-"`
	Tree     *domain.Instance `json:"tree,omitempty"`
	Version  uint64           `json:"version"`
	Selected string           `json:"selected,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// IOHandler defines how the console talks to the user.
// This allows switching between Text (CLI) and JSON (structured) modes.
type IOHandler interface {
	// Output presents a command result.
	Output(ctx context.Context, res Result) error

	// Input reads the next command line. It returns ctx.Err() when ctx ends
	// first and io.EOF when the input is exhausted.
	Input(ctx context.Context) (string, error)
}

// ContentRenderer transforms markdown before it is printed (e.g. glamour).
type ContentRenderer func(string) (string, error)
