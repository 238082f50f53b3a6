package tree

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/google/uuid"
)

// Store owns one instance tree.
// Every mutation validates first and commits in a single step, so a failed
// call leaves the tree untouched. Reads hand out deep copies.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	root    *domain.Instance
	index   map[string]*domain.Instance
	parents map[string]string
	version uint64

	registry ports.ComponentRegistry
	newID    func() string
	logger   *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithRegistry sets the component registry used for capability checks.
func WithRegistry(r ports.ComponentRegistry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

// WithIDGenerator replaces the UUID generator, mostly for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithLogger configures a logger for commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store holding a single empty root instance.
func New(opts ...Option) *Store {
	s := &Store{
		registry: registry.Default(),
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset(domain.New(s.newID(), registry.RootComponent))
	return s
}

// reset replaces the whole tree. Caller holds the write lock or owns s exclusively.
func (s *Store) reset(root *domain.Instance) {
	s.root = root
	s.index = make(map[string]*domain.Instance)
	s.parents = make(map[string]string)
	root.Walk(func(inst, parent *domain.Instance) bool {
		s.index[inst.ID] = inst
		if parent != nil {
			s.parents[inst.ID] = parent.ID
		}
		return true
	})
}

func (s *Store) commit(op string, attrs ...any) uint64 {
	s.version++
	s.logger.Debug("tree commit", append([]any{"op", op, "version", s.version}, attrs...)...)
	return s.version
}

// Version returns the number of committed mutations.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Root returns the root instance id.
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.ID
}

// Len returns the number of instances in the tree.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Contains reports whether id is in the tree.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Snapshot returns a deep copy of the whole tree.
func (s *Store) Snapshot() *domain.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root.DeepCopy()
}

// Serialize returns the flat form of the tree together with its version.
func (s *Store) Serialize() (domain.SerializedTree, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Flatten(s.root), s.version
}

// Inspect runs fn with read access to the live tree.
// fn must not modify or retain anything reachable from root.
func (s *Store) Inspect(fn func(root *domain.Instance)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.root)
}

// FindInstance returns a copy of the subtree rooted at id.
func (s *Store) FindInstance(id string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	return inst.DeepCopy(), nil
}

// CreateInstance builds a detached instance of component with a fresh id.
func (s *Store) CreateInstance(component string) (*domain.Instance, error) {
	meta, ok := s.registry.Lookup(component)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownComponentType, component)
	}
	inst := domain.New(s.newID(), component)
	inst.Props = meta.DefaultProps
	return inst, nil
}

// InsertInstance attaches a detached subtree under target.ParentID.
// The index is clamped to the parent's children count.
func (s *Store) InsertInstance(inst *domain.Instance, target domain.Target) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instance", domain.ErrInvalidTarget)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.index[target.ParentID]
	if !ok {
		return fmt.Errorf("%w: parent %q not found", domain.ErrInvalidTarget, target.ParentID)
	}
	if inst.Find(parent.ID) != nil {
		return fmt.Errorf("%w: inserting %q under %q would create a cycle", domain.ErrInvalidTarget, inst.ID, parent.ID)
	}
	if !s.registry.CanAcceptChild(parent.Component) {
		return fmt.Errorf("%w: %s %q cannot accept children", domain.ErrInvalidTarget, parent.Component, parent.ID)
	}
	if err := s.checkDetached(inst, nil); err != nil {
		return err
	}

	owned := inst.DeepCopy()
	idx := clamp(target.Index, len(parent.Children))
	parent.Children = insertAt(parent.Children, idx, domain.InstanceChild(owned))
	s.attach(owned, parent.ID)
	s.commit("insert", "instance_id", owned.ID, "parent_id", parent.ID, "index", idx)
	return nil
}

// checkDetached verifies that a subtree can join the tree: every id is new,
// unique, every component is known and only containers have children.
// seen collects ids across calls.
func (s *Store) checkDetached(inst *domain.Instance, seen map[string]bool) error {
	if seen == nil {
		seen = make(map[string]bool)
	}
	var err error
	inst.Walk(func(n, _ *domain.Instance) bool {
		if err != nil {
			return false
		}
		switch {
		case n.ID == "":
			err = fmt.Errorf("%w: instance without id", domain.ErrInvalidTarget)
		case seen[n.ID]:
			err = fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidTarget, n.ID)
		case s.index[n.ID] != nil:
			err = fmt.Errorf("%w: id %q already in tree", domain.ErrInvalidTarget, n.ID)
		default:
			if _, ok := s.registry.Lookup(n.Component); !ok {
				err = fmt.Errorf("%w: %q", domain.ErrUnknownComponentType, n.Component)
			} else if len(n.Children) > 0 && !s.registry.CanAcceptChild(n.Component) {
				err = fmt.Errorf("%w: %s %q cannot accept children", domain.ErrInvalidTarget, n.Component, n.ID)
			}
		}
		seen[n.ID] = true
		return err == nil
	})
	return err
}

func (s *Store) attach(inst *domain.Instance, parentID string) {
	s.parents[inst.ID] = parentID
	inst.Walk(func(n, p *domain.Instance) bool {
		s.index[n.ID] = n
		if p != nil {
			s.parents[n.ID] = p.ID
		}
		return true
	})
}

func (s *Store) detach(inst *domain.Instance) {
	inst.Walk(func(n, _ *domain.Instance) bool {
		delete(s.index, n.ID)
		delete(s.parents, n.ID)
		return true
	})
}

// DeleteInstance removes the subtree rooted at id and returns it.
func (s *Store) DeleteInstance(id string) (*domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	if id == s.root.ID {
		return nil, fmt.Errorf("%w: cannot delete the root", domain.ErrInvalidTarget)
	}

	parent := s.index[s.parents[id]]
	parent.Children = removeAt(parent.Children, parent.ChildIndex(id))
	s.detach(inst)
	s.commit("delete", "instance_id", id, "parent_id", parent.ID)
	return inst.DeepCopy(), nil
}

// ReparentInstance moves id under target.ParentID in one step.
// Within the same parent, the index counts positions with id already removed.
func (s *Store) ReparentInstance(id string, target domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	if id == s.root.ID {
		return fmt.Errorf("%w: cannot move the root", domain.ErrInvalidTarget)
	}
	parent, ok := s.index[target.ParentID]
	if !ok {
		return fmt.Errorf("%w: parent %q not found", domain.ErrInvalidTarget, target.ParentID)
	}
	if s.isAncestorOrSelf(id, parent.ID) {
		return fmt.Errorf("%w: moving %q under %q would create a cycle", domain.ErrInvalidTarget, id, parent.ID)
	}
	if !s.registry.CanAcceptChild(parent.Component) {
		return fmt.Errorf("%w: %s %q cannot accept children", domain.ErrInvalidTarget, parent.Component, parent.ID)
	}

	old := s.index[s.parents[id]]
	old.Children = removeAt(old.Children, old.ChildIndex(id))
	idx := clamp(target.Index, len(parent.Children))
	parent.Children = insertAt(parent.Children, idx, domain.InstanceChild(inst))
	s.parents[id] = parent.ID
	s.commit("reparent", "instance_id", id, "parent_id", parent.ID, "index", idx)
	return nil
}

// isAncestorOrSelf reports whether candidate is id or one of its descendants.
func (s *Store) isAncestorOrSelf(id, candidate string) bool {
	for cur := candidate; cur != ""; cur = s.parents[cur] {
		if cur == id {
			return true
		}
	}
	return false
}

// CloneInstance returns a detached deep copy of id with fresh ids at every level.
func (s *Store) CloneInstance(id string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	clone := inst.DeepCopy()
	clone.Walk(func(n, _ *domain.Instance) bool {
		n.ID = s.newID()
		return true
	})
	return clone, nil
}

// SetInstanceChildren replaces the children of id wholesale.
// Instance children must be current children of id or new detached subtrees.
// Current children left out of the list are deleted.
func (s *Store) SetInstanceChildren(id string, children []domain.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}

	if len(children) > 0 && !s.registry.CanAcceptChild(inst.Component) {
		return fmt.Errorf("%w: %s %q cannot accept children", domain.ErrInvalidTarget, inst.Component, id)
	}

	seen := make(map[string]bool)
	next := make([]domain.Child, 0, len(children))
	kept := make(map[string]bool)
	var added []*domain.Instance
	for _, c := range children {
		if c.Instance == nil {
			next = append(next, domain.TextChild(c.Text))
			continue
		}
		cid := c.Instance.ID
		if existing, ok := s.index[cid]; ok {
			if s.parents[cid] != id {
				return fmt.Errorf("%w: %q is not a child of %q", domain.ErrInvalidTarget, cid, id)
			}
			if kept[cid] || seen[cid] {
				return fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidTarget, cid)
			}
			kept[cid] = true
			next = append(next, domain.InstanceChild(existing))
			continue
		}
		if err := s.checkDetached(c.Instance, seen); err != nil {
			return err
		}
		owned := c.Instance.DeepCopy()
		added = append(added, owned)
		next = append(next, domain.InstanceChild(owned))
	}

	for _, c := range inst.Children {
		if c.Instance != nil && !kept[c.Instance.ID] {
			s.detach(c.Instance)
		}
	}
	inst.Children = next
	for _, a := range added {
		s.attach(a, id)
	}
	s.commit("set_children", "instance_id", id, "count", len(next))
	return nil
}

// SetInstanceProps merges props into the instance. A nil value removes a key.
// Nested maps such as "style" are merged one level deep.
func (s *Store) SetInstanceProps(id string, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	if meta, ok := s.registry.Lookup(inst.Component); ok && len(meta.PropTypes) > 0 {
		propSchema, err := schema.ParseTypeMap(meta.PropTypes)
		if err != nil {
			return fmt.Errorf("component %s: %w", inst.Component, err)
		}
		if err := schema.ValidateProps(propSchema, props); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidProps, err)
		}
	}

	inst.Props = mergeProps(inst.Props, props)
	s.commit("set_props", "instance_id", id, "keys", len(props))
	return nil
}

func mergeProps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				merged := domain.CopyProps(cur)
				for nk, nv := range nested {
					if nv == nil {
						delete(merged, nk)
					} else {
						merged[nk] = nv
					}
				}
				dst[k] = merged
				continue
			}
		}
		dst[k] = domain.CopyValue(v)
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

// Populate replaces the tree with serialized data and returns a copy of the new root.
// It accepts the flat form ({"root": ..., "instances": {...}}) or a nested instance.
func (s *Store) Populate(data []byte) (*domain.Instance, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTree, err)
	}

	if _, flat := probe["instances"]; flat {
		var t domain.SerializedTree
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTree, err)
		}
		return s.PopulateTree(t)
	}

	var root domain.Instance
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTree, err)
	}
	return s.PopulateInstance(&root)
}

// PopulateInstance replaces the tree with a nested instance.
func (s *Store) PopulateInstance(root *domain.Instance) (*domain.Instance, error) {
	seen := make(map[string]bool)
	var dup string
	root.Walk(func(n, _ *domain.Instance) bool {
		if seen[n.ID] && dup == "" {
			dup = n.ID
		}
		seen[n.ID] = true
		return true
	})
	if dup != "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTree,
			&schema.AggregateError{Errors: []error{&schema.ValidationError{Key: dup, Reason: "id appears more than once"}}})
	}
	return s.PopulateTree(domain.Flatten(root))
}

// PopulateTree replaces the tree with a flat serialized tree.
func (s *Store) PopulateTree(t domain.SerializedTree) (*domain.Instance, error) {
	known := func(component string) bool {
		_, ok := s.registry.Lookup(component)
		return ok
	}
	if err := schema.ValidateTree(t, known, schema.WithContainers(s.registry.CanAcceptChild)); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedTree, err)
	}

	root := domain.Expand(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(root)
	s.commit("populate", "root", root.ID, "instances", len(t.Instances))
	return root.DeepCopy(), nil
}

func clamp(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

func insertAt(children []domain.Child, idx int, c domain.Child) []domain.Child {
	children = append(children, domain.Child{})
	copy(children[idx+1:], children[idx:])
	children[idx] = c
	return children
}

func removeAt(children []domain.Child, idx int) []domain.Child {
	if idx < 0 {
		return children
	}
	copy(children[idx:], children[idx+1:])
	children[len(children)-1] = domain.Child{}
	return children[:len(children)-1]
}
