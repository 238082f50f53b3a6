package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// ErrPersisterClosed is returned when writing through a closed persister.
var ErrPersisterClosed = errors.New("persister closed")

// Persister writes document snapshots asynchronously.
// Pending snapshots are coalesced per document: only the newest version is written.
type Persister struct {
	mgr     *Manager
	timeout time.Duration
	logger  *slog.Logger
	onSaved func(*domain.Document)

	mu      sync.Mutex
	pending map[string]*domain.Document
	closed  bool

	// writeMu serializes batches so an older snapshot never overtakes a newer one.
	writeMu sync.Mutex

	wake chan struct{}
	done chan struct{}
}

// PersisterOption configures the Persister.
type PersisterOption func(*Persister)

// WithWriteTimeout bounds each background write. Defaults to 5s.
func WithWriteTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		p.timeout = d
	}
}

// WithPersisterLogger configures a logger for write failures.
func WithPersisterLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// OnSaved registers fn to run after each successful write.
func OnSaved(fn func(*domain.Document)) PersisterOption {
	return func(p *Persister) {
		p.onSaved = fn
	}
}

// NewPersister starts a background writer over mgr. Call Close to stop it.
func NewPersister(mgr *Manager, opts ...PersisterOption) *Persister {
	p := &Persister{
		mgr:     mgr,
		timeout: 5 * time.Second,
		logger:  logging.NewNop(),
		pending: make(map[string]*domain.Document),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.loop()
	return p
}

// Enqueue schedules doc for writing and returns immediately.
// A pending snapshot of the same document is replaced unless it is newer.
func (p *Persister) Enqueue(doc *domain.Document) {
	if doc == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("snapshot dropped, persister closed", "document_id", doc.ID, "version", doc.Version)
		return
	}
	if cur, ok := p.pending[doc.ID]; !ok || cur.Version <= doc.Version {
		p.pending[doc.ID] = doc
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of documents waiting to be written.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush writes every pending snapshot before returning.
func (p *Persister) Flush(ctx context.Context) error {
	return p.writeBatch(ctx)
}

// Close writes what is pending and stops the background writer.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	return p.writeBatch(ctx)
}

func (p *Persister) loop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			if err := p.writeBatch(ctx); err != nil {
				p.logger.Error("background persist failed", "err", err)
			}
			cancel()
		}
	}
}

func (p *Persister) writeBatch(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[string]*domain.Document)
	p.mu.Unlock()

	var errs []error
	for id, doc := range batch {
		written, err := p.mgr.SaveIfNewer(ctx, doc)
		if err != nil {
			errs = append(errs, fmt.Errorf("save %q: %w", id, err))
			p.requeue(doc)
			continue
		}
		if !written {
			p.logger.Debug("stale snapshot skipped", "document_id", id, "version", doc.Version)
			continue
		}
		if p.onSaved != nil {
			p.onSaved(doc)
		}
	}
	return errors.Join(errs...)
}

// requeue puts a failed snapshot back unless a newer one arrived meanwhile.
func (p *Persister) requeue(doc *domain.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if cur, ok := p.pending[doc.ID]; !ok || cur.Version < doc.Version {
		p.pending[doc.ID] = doc
	}
}
