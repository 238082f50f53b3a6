package arbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/aretw0/arbor/pkg/tree"
)

// Workspace keeps one live designer per open document and persists every
// commit in the background.
type Workspace struct {
	manager      *session.Manager
	persister    *session.Persister
	templates    ports.TemplateSource
	registry     *registry.Registry
	designerOpts []Option
	sessionOpts  []session.Option
	persistOpts  []session.PersisterOption
	transport    func(id string) ports.Transport
	logger       *slog.Logger

	mu      sync.Mutex
	live    map[string]*Designer
	bridges map[string]context.CancelFunc
	closed  bool
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithTemplates sets the source used by Create.
func WithTemplates(src ports.TemplateSource) WorkspaceOption {
	return func(w *Workspace) {
		w.templates = src
	}
}

// WithDesignerOptions applies opts to every designer the workspace opens.
func WithDesignerOptions(opts ...Option) WorkspaceOption {
	return func(w *Workspace) {
		w.designerOpts = append(w.designerOpts, opts...)
	}
}

// WithSessionOptions configures the underlying session.Manager (e.g. a distributed locker).
func WithSessionOptions(opts ...session.Option) WorkspaceOption {
	return func(w *Workspace) {
		w.sessionOpts = append(w.sessionOpts, opts...)
	}
}

// WithPersisterOptions configures the background writer.
func WithPersisterOptions(opts ...session.PersisterOption) WorkspaceOption {
	return func(w *Workspace) {
		w.persistOpts = append(w.persistOpts, opts...)
	}
}

// WithWorkspaceRegistry sets the registry shared by templates and designers.
func WithWorkspaceRegistry(r *registry.Registry) WorkspaceOption {
	return func(w *Workspace) {
		w.registry = r
	}
}

// WithTransport bridges the bus of every opened designer to the transport
// returned by fn, so remote canvases see the same message stream.
func WithTransport(fn func(id string) ports.Transport) WorkspaceOption {
	return func(w *Workspace) {
		w.transport = fn
	}
}

// WithWorkspaceLogger sets the workspace logger. Designers inherit it.
func WithWorkspaceLogger(logger *slog.Logger) WorkspaceOption {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// NewWorkspace creates a workspace over store.
func NewWorkspace(store ports.DocumentStore, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		registry: registry.Default(),
		logger:   logging.NewNop(),
		live:     make(map[string]*Designer),
		bridges:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.manager = session.NewManager(store, append([]session.Option{session.WithLogger(w.logger)}, w.sessionOpts...)...)
	w.persister = session.NewPersister(w.manager, append([]session.PersisterOption{session.WithPersisterLogger(w.logger)}, w.persistOpts...)...)
	return w
}

// Manager returns the session manager.
func (w *Workspace) Manager() *session.Manager { return w.manager }

// Registry returns the component registry.
func (w *Workspace) Registry() *registry.Registry { return w.registry }

// Open returns the live designer for id, loading the document or creating an
// empty one when it does not exist.
func (w *Workspace) Open(ctx context.Context, id string) (*Designer, error) {
	return w.open(ctx, id, "", false)
}

// Create creates a document from a template and opens it.
// An empty template name creates an empty document.
// Returns domain.ErrDocumentExists if id is taken.
func (w *Workspace) Create(ctx context.Context, id, template string) (*Designer, error) {
	return w.open(ctx, id, template, true)
}

func (w *Workspace) open(ctx context.Context, id, template string, mustCreate bool) (*Designer, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", domain.ErrInvalidTarget)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errors.New("workspace closed")
	}
	if d, ok := w.live[id]; ok {
		if mustCreate {
			return nil, fmt.Errorf("%w: %q", domain.ErrDocumentExists, id)
		}
		return d, nil
	}

	doc, created, err := w.manager.LoadOrCreate(ctx, id, func(id string) (*domain.Document, error) {
		return w.seed(id, template)
	})
	if err != nil {
		return nil, err
	}
	if mustCreate && !created {
		return nil, fmt.Errorf("%w: %q", domain.ErrDocumentExists, id)
	}

	opts := append([]Option{
		WithRegistry(w.registry),
		WithLogger(w.logger),
	}, w.designerOpts...)
	opts = append(opts, WithDocumentID(id), WithCommitListener(w.persister.Enqueue))

	d, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Load(doc); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load document %q: %w", id, err)
	}
	w.live[id] = d
	if w.transport != nil {
		w.bridgeLocked(id, d)
	}
	w.logger.Info("document opened", "document_id", id, "version", doc.Version, "created", created)
	return d, nil
}

func (w *Workspace) bridgeLocked(id string, d *Designer) {
	ctx, cancel := context.WithCancel(context.Background())
	br := bus.NewBridge(d.Bus(), w.transport(id), bus.WithBridgeLogger(w.logger))
	w.bridges[id] = cancel
	go func() {
		if err := br.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("bus bridge stopped", "document_id", id, "err", err)
		}
	}()
}

// seed builds the initial document for id.
func (w *Workspace) seed(id, template string) (*domain.Document, error) {
	s := tree.New(tree.WithRegistry(w.registry))
	if template != "" {
		if w.templates == nil {
			return nil, fmt.Errorf("%w: %q (no template source)", domain.ErrTemplateNotFound, template)
		}
		data, err := w.templates.GetTemplate(template)
		if err != nil {
			return nil, err
		}
		if _, err := s.Populate(data); err != nil {
			return nil, fmt.Errorf("template %q: %w", template, err)
		}
	}
	t, v := s.Serialize()
	return &domain.Document{ID: id, Version: v, Tree: t, UpdatedAt: time.Now().UTC()}, nil
}

// Lookup returns the designer for id if it is open.
func (w *Workspace) Lookup(id string) (*Designer, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.live[id]
	return d, ok
}

// OpenDocuments returns the ids of live designers, sorted.
func (w *Workspace) OpenDocuments() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.live))
	for id := range w.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Documents lists every stored document id.
func (w *Workspace) Documents(ctx context.Context) ([]string, error) {
	return w.manager.List(ctx)
}

// Templates lists the available template names.
func (w *Workspace) Templates() ([]string, error) {
	if w.templates == nil {
		return nil, nil
	}
	return w.templates.ListTemplates()
}

// CloseDocument flushes and closes the designer for id, keeping the stored document.
func (w *Workspace) CloseDocument(ctx context.Context, id string) error {
	w.mu.Lock()
	d, ok := w.live[id]
	delete(w.live, id)
	if cancel, bridged := w.bridges[id]; bridged {
		cancel()
		delete(w.bridges, id)
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}
	if err := d.Flush(ctx); err != nil {
		return err
	}
	if err := d.Close(); err != nil {
		return err
	}
	return w.persister.Flush(ctx)
}

// Delete closes the designer for id and removes the stored document.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	if err := w.CloseDocument(ctx, id); err != nil {
		return err
	}
	return w.manager.Delete(ctx, id)
}

// Flush waits for queued messages in every open designer and writes pending snapshots.
func (w *Workspace) Flush(ctx context.Context) error {
	w.mu.Lock()
	designers := make([]*Designer, 0, len(w.live))
	for _, d := range w.live {
		designers = append(designers, d)
	}
	w.mu.Unlock()

	for _, d := range designers {
		if err := d.Flush(ctx); err != nil {
			return err
		}
	}
	return w.persister.Flush(ctx)
}

// Close flushes, closes every designer and stops the background writer.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	designers := w.live
	w.live = make(map[string]*Designer)
	for id, cancel := range w.bridges {
		cancel()
		delete(w.bridges, id)
	}
	w.mu.Unlock()

	var errs []error
	for id, d := range designers {
		if err := d.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush %q: %w", id, err))
		}
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", id, err))
		}
	}
	if err := w.persister.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
