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
	"github.com/aretw0/arbor/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates document access, ensuring safe concurrent operations.
// Per-document locks are reference counted and dropped when unused.
type Manager struct {
	store ports.DocumentStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock lives if never released.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a document manager over store.
func NewManager(store ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves a document from the store.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Document, error) {
	var doc *domain.Document
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, id)
		return err
	})
	return doc, err
}

// LoadOrCreate loads a document, or saves and returns the one built by seed
// when none exists yet. seed receives the id and must not be nil.
func (m *Manager) LoadOrCreate(ctx context.Context, id string, seed func(id string) (*domain.Document, error)) (doc *domain.Document, created bool, err error) {
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			return fmt.Errorf("failed to check document existence: %w", err)
		}

		doc, err = seed(id)
		if err != nil {
			return err
		}
		doc.ID = id
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now().UTC()
		}
		// Persist immediately to reserve the id.
		if err := m.store.Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to initialize document: %w", err)
		}
		created = true
		return nil
	})
	return doc, created, err
}

// Save persists the document.
func (m *Manager) Save(ctx context.Context, doc *domain.Document) error {
	return m.WithLock(ctx, doc.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, doc)
	})
}

// SaveIfNewer persists doc unless the stored copy is at least as new.
// It reports whether doc was written.
func (m *Manager) SaveIfNewer(ctx context.Context, doc *domain.Document) (bool, error) {
	written := false
	err := m.WithLock(ctx, doc.ID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, doc.ID)
		switch {
		case err == nil:
			if current.Version >= doc.Version {
				return nil
			}
		case !errors.Is(err, domain.ErrDocumentNotFound):
			return err
		}
		if err := m.store.Save(ctx, doc); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}

// Delete removes the document from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying document store.
func (m *Manager) Store() ports.DocumentStore {
	return m.store
}

// WithLock executes fn while holding the lock for the document.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"document_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
