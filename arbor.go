package arbor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/drag"
	"github.com/aretw0/arbor/pkg/pointer"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/tree"
	jsonpatch "github.com/evanphx/json-patch"
)

// Designer is the authoring surface of one document.
// It owns the tree, applies mutation intents arriving on the bus in publish
// order, and broadcasts every committed change as a treeChanged message.
type Designer struct {
	id       string
	store    *tree.Store
	bus      *bus.Bus
	busOpts  []bus.Option
	ownsBus  bool
	pointer  *pointer.Normalizer
	engine   *drag.Engine
	rects    ports.RectSource
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	onCommit []func(*domain.Document)
	newID    func() string
	logger   *slog.Logger

	mu        sync.Mutex
	offset    uint64
	lastRaw   []byte
	lastVer   uint64
	selected  string
	hovered   string
	editing   string
	preview   bool
	scrolling bool
	sub       bus.Subscription
	closed    bool

	sentMu sync.Mutex
	sent   map[bus.Payload]struct{}

	waitMu  sync.Mutex
	waiting map[bus.Payload]chan error
}

// Option defines a functional option for configuring the Designer.
type Option func(*Designer)

// WithDocumentID names the document. Defaults to "default".
func WithDocumentID(id string) Option {
	return func(d *Designer) {
		d.id = id
	}
}

// WithBus shares an existing bus. The designer then does not close it.
func WithBus(b *bus.Bus) Option {
	return func(d *Designer) {
		d.bus = b
	}
}

// WithBusOptions configures the bus the designer creates when none is shared.
func WithBusOptions(opts ...bus.Option) Option {
	return func(d *Designer) {
		d.busOpts = append(d.busOpts, opts...)
	}
}

// WithRectSource sets the live layout used for drag targeting.
func WithRectSource(r ports.RectSource) Option {
	return func(d *Designer) {
		d.rects = r
	}
}

// WithRegistry sets the component registry. Defaults to registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(d *Designer) {
		d.registry = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Designer) {
		d.hooks = hooks
	}
}

// WithCommitListener registers fn to receive a snapshot after every commit.
// fn runs on the committing goroutine and must not block.
func WithCommitListener(fn func(*domain.Document)) Option {
	return func(d *Designer) {
		d.onCommit = append(d.onCommit, fn)
	}
}

// WithIDGenerator overrides instance id generation.
func WithIDGenerator(fn func() string) Option {
	return func(d *Designer) {
		d.newID = fn
	}
}

// WithLogger sets a custom structured logger for the designer.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Designer) {
		d.logger = logger
	}
}

// New creates a designer with an empty document and starts consuming the bus.
func New(opts ...Option) (*Designer, error) {
	d := &Designer{
		id:      "default",
		sent:    make(map[bus.Payload]struct{}),
		waiting: make(map[bus.Payload]chan error),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	d.logger = d.logger.With("document_id", d.id)
	if d.registry == nil {
		d.registry = registry.Default()
	}
	if d.rects == nil {
		d.rects = noRects{}
	}
	if d.bus == nil {
		d.bus = bus.NewBus(append([]bus.Option{bus.WithLogger(d.logger)}, d.busOpts...)...)
		d.ownsBus = true
	}

	storeOpts := []tree.Option{tree.WithRegistry(d.registry), tree.WithLogger(d.logger)}
	if d.newID != nil {
		storeOpts = append(storeOpts, tree.WithIDGenerator(d.newID))
	}
	d.store = tree.New(storeOpts...)

	d.engine = drag.New(d.store, d.rects, intentCommitter{d.bus},
		drag.WithRegistry(d.registry),
		drag.WithPublisher(d.bus),
		drag.WithHooks(d.hooks),
		drag.WithDocumentID(d.id),
		drag.WithLogger(d.logger),
	)
	d.pointer = pointer.New(pointer.WithHandler(d.engine), pointer.WithLogger(d.logger))

	d.mu.Lock()
	err := d.resetBaselineLocked()
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sub, err := d.bus.SubscribeAll(d.receive)
	if err != nil {
		return nil, err
	}
	d.sub = sub

	// Surfaces attached before the designer have lost their sync request.
	d.mu.Lock()
	d.snapshotLocked()
	d.mu.Unlock()
	return d, nil
}

// ID returns the document id.
func (d *Designer) ID() string { return d.id }

// Bus returns the bus the designer listens on.
func (d *Designer) Bus() *bus.Bus { return d.bus }

// Store returns the tree store. Mutate through the designer so changes are broadcast.
func (d *Designer) Store() *tree.Store { return d.store }

// Engine returns the drag engine.
func (d *Designer) Engine() *drag.Engine { return d.engine }

// Registry returns the component registry.
func (d *Designer) Registry() *registry.Registry { return d.registry }

// HandleInput feeds raw pointer or keyboard input to the drag pipeline.
func (d *Designer) HandleInput(in pointer.Input) {
	d.pointer.Handle(in)
}

// Pointer returns the pointer normalizer.
func (d *Designer) Pointer() *pointer.Normalizer { return d.pointer }

// BeginComponentDrag arms a drag of a new component from the palette.
func (d *Designer) BeginComponentDrag(component string) error {
	return d.engine.BeginComponentDrag(component)
}

// Version returns the document version.
func (d *Designer) Version() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offset + d.store.Version()
}

// Document returns a snapshot of the document.
func (d *Designer) Document() *domain.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.documentLocked()
}

func (d *Designer) documentLocked() *domain.Document {
	t, v := d.store.Serialize()
	return &domain.Document{ID: d.id, Version: d.offset + v, Tree: t, UpdatedAt: time.Now().UTC()}
}

// Flush waits until every queued bus message has been handled.
func (d *Designer) Flush(ctx context.Context) error {
	return d.bus.Flush(ctx)
}

// Close stops consuming the bus and closes it if the designer created it.
func (d *Designer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.engine.Cancel()
	d.sub.Unsubscribe()
	if d.ownsBus {
		return d.bus.Close()
	}
	return nil
}

// Load replaces the tree with a stored document and broadcasts a snapshot.
func (d *Designer) Load(doc *domain.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := d.store.Version()
	if _, err := d.store.PopulateTree(doc.Tree); err != nil {
		d.rejectLocked(domain.MutationPopulate, doc.Tree.Root, "", 0, err)
		return err
	}
	// Keep versions monotonic across reloads.
	if doc.Version > d.offset+before {
		d.offset = doc.Version - d.store.Version()
	}
	d.clearStateLocked()
	d.engine.Cancel()
	return d.committedLocked(domain.MutationPopulate, doc.Tree.Root, "", 0, true)
}

// Populate replaces the tree with serialized data in flat or nested form.
func (d *Designer) Populate(data []byte) (*domain.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	root, err := d.store.Populate(data)
	if err != nil {
		d.rejectLocked(domain.MutationPopulate, "", "", 0, err)
		return nil, err
	}
	d.clearStateLocked()
	d.engine.Cancel()
	return root, d.committedLocked(domain.MutationPopulate, root.ID, "", 0, true)
}

// Create builds a detached instance of component with default props.
func (d *Designer) Create(component string) (*domain.Instance, error) {
	return d.store.CreateInstance(component)
}

// Insert inserts inst at target, or next to the selection when target is nil.
// The new instance becomes the selection.
func (d *Designer) Insert(inst *domain.Instance, target *domain.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(inst, target)
}

func (d *Designer) insertLocked(inst *domain.Instance, target *domain.Target) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instance", domain.ErrInvalidTarget)
	}
	t := d.defaultTargetLocked()
	if target != nil {
		t = *target
	}
	if err := d.store.InsertInstance(inst, t); err != nil {
		d.rejectLocked(domain.MutationInsert, inst.ID, t.ParentID, t.Index, err)
		return err
	}
	if err := d.committedLocked(domain.MutationInsert, inst.ID, t.ParentID, t.Index, false); err != nil {
		return err
	}
	d.selectLocked(inst.ID, true)
	return nil
}

// defaultTargetLocked appends into the selection when it takes children,
// places after it otherwise, and falls back to the end of the root.
func (d *Designer) defaultTargetLocked() domain.Target {
	if d.selected != "" {
		if sel, err := d.store.FindInstance(d.selected); err == nil {
			if d.registry.CanAcceptChild(sel.Component) {
				return domain.Target{ParentID: sel.ID, Index: len(sel.Children)}
			}
			if parentID, idx, err := d.store.SiblingIndex(sel.ID); err == nil {
				return domain.Target{ParentID: parentID, Index: idx + 1}
			}
		}
	}
	root := d.store.Root()
	n := 0
	d.store.Inspect(func(r *domain.Instance) { n = len(r.Children) })
	return domain.Target{ParentID: root, Index: n}
}

// Delete removes the subtree at id. Deleting the selection unselects it.
func (d *Designer) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteLocked(id)
}

func (d *Designer) deleteLocked(id string) error {
	parentID, idx, _ := d.store.SiblingIndex(id)
	removed, err := d.store.DeleteInstance(id)
	if err != nil {
		d.rejectLocked(domain.MutationDelete, id, "", 0, err)
		return err
	}
	d.engine.Invalidate(id)
	if err := d.committedLocked(domain.MutationDelete, id, parentID, idx, false); err != nil {
		return err
	}
	if d.hovered != "" && removed.Find(d.hovered) != nil {
		d.hovered = ""
	}
	if d.editing != "" && removed.Find(d.editing) != nil {
		d.editing = ""
	}
	if d.selected != "" && removed.Find(d.selected) != nil {
		d.unselectLocked(true)
	}
	return nil
}

// Reparent moves id to target.
func (d *Designer) Reparent(id string, target domain.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reparentLocked(id, target)
}

func (d *Designer) reparentLocked(id string, target domain.Target) error {
	if err := d.store.ReparentInstance(id, target); err != nil {
		d.rejectLocked(domain.MutationReparent, id, target.ParentID, target.Index, err)
		return err
	}
	return d.committedLocked(domain.MutationReparent, id, target.ParentID, target.Index, false)
}

// Clone duplicates id right after itself and selects the copy.
func (d *Designer) Clone(id string) (*domain.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cloneLocked(id)
}

func (d *Designer) cloneLocked(id string) (*domain.Instance, error) {
	parentID, idx, err := d.store.SiblingIndex(id)
	if err != nil {
		d.rejectLocked(domain.MutationInsert, id, "", 0, err)
		return nil, err
	}
	clone, err := d.store.CloneInstance(id)
	if err != nil {
		d.rejectLocked(domain.MutationInsert, id, parentID, idx+1, err)
		return nil, err
	}
	if err := d.insertLocked(clone, &domain.Target{ParentID: parentID, Index: idx + 1}); err != nil {
		return nil, err
	}
	return clone, nil
}

// SetProps merges props into id. Nil values delete keys.
func (d *Designer) SetProps(id string, props map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.SetInstanceProps(id, props); err != nil {
		d.rejectLocked(domain.MutationSetProps, id, "", 0, err)
		return err
	}
	return d.committedLocked(domain.MutationSetProps, id, "", 0, false)
}

// SetChildren replaces the children of id.
func (d *Designer) SetChildren(id string, children []domain.Child) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	before, err := d.store.FindInstance(id)
	if err != nil {
		d.rejectLocked(domain.MutationSetChildren, id, "", 0, err)
		return err
	}
	if err := d.store.SetInstanceChildren(id, children); err != nil {
		d.rejectLocked(domain.MutationSetChildren, id, "", 0, err)
		return err
	}
	for _, c := range before.Children {
		if c.Instance != nil && !d.store.Contains(c.Instance.ID) {
			d.engine.Invalidate(c.Instance.ID)
			if d.selected != "" && c.Instance.Find(d.selected) != nil {
				d.unselectLocked(true)
			}
		}
	}
	return d.committedLocked(domain.MutationSetChildren, id, "", 0, false)
}

// Select makes id the selection and announces it.
func (d *Designer) Select(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.store.Contains(id) {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	d.selectLocked(id, true)
	return nil
}

// Unselect clears the selection and announces it.
func (d *Designer) Unselect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unselectLocked(true)
}

// Selected returns the selected instance id, or "".
func (d *Designer) Selected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// Hovered returns the hovered instance id, or "".
func (d *Designer) Hovered() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hovered
}

// Editing returns the instance whose text is being edited, or "".
func (d *Designer) Editing() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editing
}

// Preview reports whether preview mode is on.
func (d *Designer) Preview() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preview
}

// Scrolling reports whether the canvas is scrolling.
func (d *Designer) Scrolling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolling
}

// ToolsVisible reports whether selection and hover outlines should be drawn.
// They are hidden while previewing or scrolling.
func (d *Designer) ToolsVisible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.preview && !d.scrolling
}

func (d *Designer) selectLocked(id string, announce bool) {
	if d.selected == id {
		return
	}
	if d.editing != "" && d.editing != id {
		d.editing = ""
	}
	d.selected = id
	if announce {
		d.emit(&bus.SelectInstance{ID: id})
	}
}

func (d *Designer) unselectLocked(announce bool) {
	if d.selected == "" {
		return
	}
	d.selected = ""
	d.editing = ""
	if announce {
		d.emit(&bus.UnselectInstance{})
	}
}

func (d *Designer) clearStateLocked() {
	if d.selected != "" && !d.store.Contains(d.selected) {
		d.unselectLocked(true)
	}
	if !d.store.Contains(d.hovered) {
		d.hovered = ""
	}
	if !d.store.Contains(d.editing) {
		d.editing = ""
	}
}

// emit publishes p and remembers it so the designer skips its own echo.
func (d *Designer) emit(p bus.Payload) {
	d.sentMu.Lock()
	d.sent[p] = struct{}{}
	d.sentMu.Unlock()

	if err := d.bus.Emit(p); err != nil {
		d.sentMu.Lock()
		delete(d.sent, p)
		d.sentMu.Unlock()
		if !errors.Is(err, bus.ErrClosed) {
			d.logger.Warn("designer publish failed", "type", p.MessageType(), "err", err)
		}
	}
}

// own reports whether p was published by this designer, forgetting it.
func (d *Designer) own(p bus.Payload) bool {
	d.sentMu.Lock()
	defer d.sentMu.Unlock()
	if _, ok := d.sent[p]; ok {
		delete(d.sent, p)
		return true
	}
	return false
}

// snapshotLocked broadcasts the whole tree at its current version.
func (d *Designer) snapshotLocked() {
	doc := d.documentLocked()
	d.emit(&bus.TreeChanged{Version: doc.Version, Base: doc.Version, Tree: &doc.Tree})
}

// resetBaselineLocked records the current tree as the base of the next patch.
func (d *Designer) resetBaselineLocked() error {
	t, v := d.store.Serialize()
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	d.lastRaw, d.lastVer = raw, d.offset+v
	return nil
}

// committedLocked broadcasts the change, notifies listeners and fires hooks.
func (d *Designer) committedLocked(kind domain.MutationKind, instanceID, parentID string, index int, snapshot bool) error {
	doc := d.documentLocked()
	raw, err := json.Marshal(doc.Tree)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}

	msg := &bus.TreeChanged{Version: doc.Version, Base: d.lastVer}
	if snapshot {
		t := doc.Tree.Clone()
		msg.Tree = &t
	} else {
		patch, err := jsonpatch.CreateMergePatch(d.lastRaw, raw)
		if err != nil {
			return fmt.Errorf("diff tree: %w", err)
		}
		msg.Patch = patch
	}
	d.lastRaw, d.lastVer = raw, doc.Version
	d.emit(msg)

	for _, fn := range d.onCommit {
		fn(doc.Clone())
	}
	if d.hooks.OnMutation != nil {
		d.hooks.OnMutation(context.Background(), d.mutationEvent(domain.EventMutation, kind, instanceID, parentID, index, doc.Version, nil))
	}
	d.logger.Debug("mutation committed", "kind", kind, "instance_id", instanceID, "version", doc.Version)
	return nil
}

func (d *Designer) rejectLocked(kind domain.MutationKind, instanceID, parentID string, index int, err error) {
	d.logger.Debug("mutation rejected", "kind", kind, "instance_id", instanceID, "parent_id", parentID, "err", err)
	if d.hooks.OnMutationRejected != nil {
		d.hooks.OnMutationRejected(context.Background(),
			d.mutationEvent(domain.EventRejected, kind, instanceID, parentID, index, d.offset+d.store.Version(), err))
	}
}

func (d *Designer) mutationEvent(typ domain.EventType, kind domain.MutationKind, instanceID, parentID string, index int, version uint64, err error) *domain.MutationEvent {
	return &domain.MutationEvent{
		EventBase: domain.EventBase{
			Timestamp:  time.Now(),
			Type:       typ,
			DocumentID: d.id,
		},
		Kind:       kind,
		InstanceID: instanceID,
		ParentID:   parentID,
		Index:      index,
		Version:    version,
		Err:        err,
	}
}

// noRects is the layout of a surface that renders nothing.
type noRects struct{}

func (noRects) RectOf(string) (domain.Rect, bool) { return domain.Rect{}, false }

// intentCommitter turns drops into bus intents so they reach the tree owner
// through the same ordered path as every other mutation.
type intentCommitter struct {
	bus *bus.Bus
}

func (c intentCommitter) CommitInsert(inst *domain.Instance, target domain.Target) error {
	return c.bus.Emit(&bus.InsertInstance{Instance: inst, Target: &target})
}

func (c intentCommitter) CommitReparent(id string, target domain.Target) error {
	return c.bus.Emit(&bus.ReparentInstance{ID: id, ParentID: target.ParentID, Index: target.Index})
}
