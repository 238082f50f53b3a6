package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
)

// ConsoleOptions configures RunConsole.
type ConsoleOptions struct {
	Document string
	Template string
	JSON     bool
	// Pretty renders output through glamour and prints the banner.
	Pretty bool
	In     io.Reader
	Out    io.Writer
}

// OpenDocument opens id, creating it from template when it does not exist yet.
func (st *Stack) OpenDocument(ctx context.Context, id, template string) (*arbor.Designer, error) {
	if template == "" {
		return st.Workspace.Open(ctx, id)
	}
	d, err := st.Workspace.Create(ctx, id, template)
	if errors.Is(err, domain.ErrDocumentExists) {
		st.logger.Debug("document exists, template ignored", "document_id", id, "template", template)
		return st.Workspace.Open(ctx, id)
	}
	return d, err
}

// RunConsole drives one document from a line console until the input ends.
func (st *Stack) RunConsole(ctx context.Context, opts ConsoleOptions) error {
	d, err := st.OpenDocument(ctx, opts.Document, opts.Template)
	if err != nil {
		return err
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		var textOpts []runner.TextHandlerOption
		if opts.Pretty {
			tui.PrintBanner(opts.Out)
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, textOpts...)
	}

	console := runner.NewConsole(d,
		runner.WithInputHandler(handler),
		runner.WithLogger(st.logger),
		runner.WithGreeting(fmt.Sprintf("Editing %q (version %d). Type 'help' for commands.", d.ID(), d.Version())),
	)
	if err := console.Run(ctx); err != nil {
		return err
	}
	return st.Workspace.Flush(ctx)
}
