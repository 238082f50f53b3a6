package canvas

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	jsonpatch "github.com/evanphx/json-patch"
)

// Mirror is a read-only replica of the authoring tree.
// It applies treeChanged messages in version order and asks for a full
// snapshot whenever it misses one.
type Mirror struct {
	mu       sync.RWMutex
	tree     domain.SerializedTree
	raw      []byte
	version  uint64
	synced   bool
	selected string
	hovered  string
	preview  bool

	bus       *bus.Bus
	subs      []bus.Subscription
	onChange  func(domain.SerializedTree, uint64)
	logger    *slog.Logger
	// requested is set while a sync request is outstanding; requestedAt is
	// the newest version known when it was sent.
	requested   bool
	requestedAt uint64
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithMirrorLogger configures the mirror logger.
func WithMirrorLogger(logger *slog.Logger) MirrorOption {
	return func(m *Mirror) {
		m.logger = logger
	}
}

// OnChange registers fn to run after every applied change.
func OnChange(fn func(tree domain.SerializedTree, version uint64)) MirrorOption {
	return func(m *Mirror) {
		m.onChange = fn
	}
}

// NewMirror creates an unsynced mirror.
func NewMirror(opts ...MirrorOption) *Mirror {
	m := &Mirror{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach subscribes the mirror to b and requests an initial snapshot.
func (m *Mirror) Attach(b *bus.Bus) error {
	m.mu.Lock()
	m.bus = b
	m.mu.Unlock()

	subs := make([]bus.Subscription, 0, 5)
	add := func(s bus.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, s)
		return nil
	}
	err := add(bus.On(b, func(p *bus.TreeChanged) {
		if _, err := m.Apply(p); err != nil {
			m.logger.Warn("mirror failed to apply change", "version", p.Version, "err", err)
		}
	}))
	if err == nil {
		err = add(bus.On(b, func(p *bus.SelectInstance) { m.setSelected(p.ID) }))
	}
	if err == nil {
		err = add(bus.On(b, func(*bus.UnselectInstance) { m.setSelected("") }))
	}
	if err == nil {
		err = add(bus.On(b, func(p *bus.HoverInstance) { m.setHovered(p.ID) }))
	}
	if err == nil {
		err = add(bus.On(b, func(p *bus.PreviewMode) {
			m.mu.Lock()
			m.preview = p.Enabled
			m.mu.Unlock()
		}))
	}
	if err != nil {
		for _, s := range subs {
			s.Unsubscribe()
		}
		return err
	}

	m.mu.Lock()
	m.subs = subs
	m.mu.Unlock()
	m.requestSync(0)
	return nil
}

// Detach removes the mirror's subscriptions.
func (m *Mirror) Detach() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Apply applies one change and reports whether the mirror advanced.
// A patch whose base is not the mirror's version is ignored and triggers a
// sync request, repeated for every newer version seen until a snapshot
// arrives; stale snapshots are ignored.
func (m *Mirror) Apply(tc *bus.TreeChanged) (bool, error) {
	m.mu.Lock()

	if tc.Tree != nil {
		if m.synced && tc.Version < m.version {
			m.mu.Unlock()
			return false, nil
		}
		raw, err := json.Marshal(tc.Tree)
		if err != nil {
			m.mu.Unlock()
			return false, fmt.Errorf("encode snapshot: %w", err)
		}
		m.commit(tc.Tree.Clone(), raw, tc.Version)
		return true, nil
	}

	if !m.synced || tc.Base != m.version {
		if m.synced && tc.Version <= m.version {
			m.mu.Unlock()
			return false, nil
		}
		m.mu.Unlock()
		m.logger.Debug("mirror out of sync", "base", tc.Base, "have", m.Version())
		m.requestSync(tc.Version)
		return false, nil
	}

	raw, err := jsonpatch.MergePatch(m.raw, tc.Patch)
	if err != nil {
		m.mu.Unlock()
		m.requestSync(tc.Version)
		return false, fmt.Errorf("apply patch: %w", err)
	}
	var next domain.SerializedTree
	if err := json.Unmarshal(raw, &next); err != nil {
		m.mu.Unlock()
		m.requestSync(tc.Version)
		return false, fmt.Errorf("decode patched tree: %w", err)
	}
	m.commit(next, raw, tc.Version)
	return true, nil
}

// commit installs a new state and releases the lock.
func (m *Mirror) commit(t domain.SerializedTree, raw []byte, version uint64) {
	m.tree, m.raw, m.version, m.synced = t, raw, version, true
	m.requested = false
	if _, ok := t.Instances[m.selected]; !ok {
		m.selected = ""
	}
	if _, ok := t.Instances[m.hovered]; !ok {
		m.hovered = ""
	}
	fn := m.onChange
	snapshot := t.Clone()
	m.mu.Unlock()

	if fn != nil {
		fn(snapshot, version)
	}
}

// requestSync asks the designer for a snapshot. A request is dropped when
// nobody listens yet, so an outstanding one is only trusted to cover
// versions up to seen.
func (m *Mirror) requestSync(seen uint64) {
	m.mu.Lock()
	b := m.bus
	if b == nil || (m.requested && seen <= m.requestedAt) {
		m.mu.Unlock()
		return
	}
	m.requested, m.requestedAt = true, seen
	m.mu.Unlock()
	if err := b.Emit(&bus.SyncRequest{}); err != nil {
		m.logger.Warn("mirror sync request failed", "err", err)
		m.mu.Lock()
		m.requested = false
		m.mu.Unlock()
	}
}

func (m *Mirror) setSelected(id string) {
	m.mu.Lock()
	m.selected = id
	m.mu.Unlock()
}

func (m *Mirror) setHovered(id string) {
	m.mu.Lock()
	m.hovered = id
	m.mu.Unlock()
}

// Synced reports whether the mirror has received a snapshot.
func (m *Mirror) Synced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.synced
}

// Version returns the version of the mirrored tree.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Tree returns a copy of the mirrored flat tree and its version.
func (m *Mirror) Tree() (domain.SerializedTree, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Clone(), m.version
}

// Root returns the mirrored tree in nested form, or nil before the first sync.
func (m *Mirror) Root() *domain.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.synced {
		return nil
	}
	return domain.Expand(m.tree)
}

// Selected returns the selected instance id as last announced on the bus.
func (m *Mirror) Selected() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// Hovered returns the hovered instance id.
func (m *Mirror) Hovered() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hovered
}

// Preview reports whether the canvas is in preview mode.
func (m *Mirror) Preview() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preview
}
