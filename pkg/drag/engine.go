package drag

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/pointer"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// Tree is the read side of the tree the engine targets.
// *tree.Store satisfies it.
type Tree interface {
	Inspect(fn func(root *domain.Instance))
	CreateInstance(component string) (*domain.Instance, error)
	FindInstance(id string) (*domain.Instance, error)
	FindClosestSiblingInstance(id string, dir domain.Direction) (*domain.Instance, error)
	SiblingIndex(id string) (parentID string, index int, err error)
}

// Committer applies the result of a drop.
type Committer interface {
	CommitInsert(inst *domain.Instance, target domain.Target) error
	CommitReparent(id string, target domain.Target) error
}

// Publisher sends drag lifecycle messages. *bus.Bus satisfies it.
type Publisher interface {
	Emit(p bus.Payload) error
}

type dragState struct {
	key      pointer.Key
	source   *domain.Instance
	isNew    bool
	keyboard bool
	pointer  domain.Point
	target   *domain.DropTarget
	started  bool
}

// Engine computes drop targets for the primary pointer session.
type Engine struct {
	mu        sync.Mutex
	tree      Tree
	rects     ports.RectSource
	registry  ports.ComponentRegistry
	committer Committer
	publisher Publisher
	hooks     domain.LifecycleHooks
	docID     string
	logger    *slog.Logger

	pending *domain.Instance
	drag    *dragState
}

// Option configures the Engine.
type Option func(*Engine)

// WithRegistry overrides the component registry. Defaults to registry.Default().
func WithRegistry(r ports.ComponentRegistry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithPublisher sets where drag lifecycle messages go.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithHooks registers lifecycle hooks for drag observability.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithDocumentID tags hook events with a document id.
func WithDocumentID(id string) Option {
	return func(e *Engine) {
		e.docID = id
	}
}

// WithLogger configures the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates a drag engine.
func New(t Tree, rects ports.RectSource, c Committer, opts ...Option) *Engine {
	e := &Engine{
		tree:      t,
		rects:     rects,
		committer: c,
		registry:  registry.Default(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ pointer.Handler = (*Engine)(nil)

// BeginComponentDrag arms a drag of a new instance of component. The next
// primary move start drags it instead of the instance under the pointer.
func (e *Engine) BeginComponentDrag(component string) error {
	inst, err := e.tree.CreateInstance(component)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.pending = inst
	e.mu.Unlock()
	return nil
}

// Active reports whether a drag is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag != nil
}

// Target returns the current drop target, if any.
func (e *Engine) Target() (domain.DropTarget, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil || e.drag.target == nil {
		return domain.DropTarget{}, false
	}
	return *e.drag.target, true
}

// Dragged returns the id of the dragged instance, if any.
func (e *Engine) Dragged() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag == nil {
		return "", false
	}
	return e.drag.source.ID, true
}

// OnMoveStart starts a drag for the primary session.
func (e *Engine) OnMoveStart(ev pointer.MoveStart) {
	if !ev.Primary {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag != nil {
		return
	}

	d := &dragState{
		key:      ev.Key,
		pointer:  ev.Page,
		keyboard: ev.Key.Type == pointer.Keyboard,
	}
	switch {
	case e.pending != nil:
		d.source, d.isNew = e.pending, true
		e.pending = nil
	default:
		inst, err := e.tree.FindInstance(ev.Target)
		if err != nil {
			return
		}
		if _, _, err := e.tree.SiblingIndex(inst.ID); err != nil {
			// the root is not draggable
			return
		}
		d.source = inst
	}
	e.drag = d
}

// OnMove recomputes the drop target.
func (e *Engine) OnMove(ev pointer.Move) {
	e.mu.Lock()
	d := e.drag
	if d == nil || d.key != ev.Key {
		e.mu.Unlock()
		return
	}

	if d.keyboard {
		d.target = e.structuralTarget(d, ev.Delta)
	} else {
		d.pointer = ev.Page
		target, inside := e.pointerTarget(d, domain.DominantAxis(ev.Delta.X, ev.Delta.Y))
		if !inside {
			e.mu.Unlock()
			e.cancel(true)
			return
		}
		d.target = target
	}

	var out []bus.Payload
	if d.target != nil && !d.started {
		d.started = true
		out = append(out, &bus.DragStartInstance{})
		e.fire(domain.DragStart, d)
	}
	out = append(out, &bus.DragInstance{
		Instance:      d.source.DeepCopy(),
		CurrentOffset: d.pointer,
		DropTarget:    copyTarget(d.target),
	})
	e.fire(domain.DragOver, d)
	e.mu.Unlock()

	e.publish(out...)
}

// OnMoveEnd drops or cancels the drag.
func (e *Engine) OnMoveEnd(ev pointer.MoveEnd) {
	e.mu.Lock()
	d := e.drag
	if d == nil || d.key != ev.Key {
		e.mu.Unlock()
		return
	}
	if ev.Canceled {
		e.mu.Unlock()
		e.cancel(false)
		return
	}
	e.drag = nil
	if d.target == nil {
		e.fire(domain.DragCancel, d)
		e.mu.Unlock()
		e.logger.Debug("drag discarded without target", "instance_id", d.source.ID)
		e.endMessage(d)
		return
	}
	e.fire(domain.DragDrop, d)
	e.mu.Unlock()

	e.endMessage(d)
	target := d.target.Target()
	var err error
	if d.isNew {
		err = e.committer.CommitInsert(d.source, target)
	} else {
		err = e.committer.CommitReparent(d.source.ID, target)
	}
	if err != nil {
		e.logger.Warn("drop rejected", "instance_id", d.source.ID, "parent_id", target.ParentID, "err", err)
	}
}

// Cancel aborts the current drag without committing.
func (e *Engine) Cancel() {
	e.cancel(false)
}

// Invalidate reacts to the deletion of id. A drag whose dragged subtree
// contained id is canceled; a drop target inside the deleted subtree is cleared.
func (e *Engine) Invalidate(id string) {
	e.mu.Lock()
	if e.pending != nil && e.pending.Find(id) != nil {
		e.pending = nil
	}
	d := e.drag
	if d == nil {
		e.mu.Unlock()
		return
	}
	if !d.isNew && d.source.Find(id) != nil {
		e.mu.Unlock()
		e.cancel(false)
		return
	}
	if d.target != nil && !e.contains(d.target.ParentID) {
		d.target = nil
	}
	e.mu.Unlock()
}

func (e *Engine) cancel(leftSurface bool) {
	e.mu.Lock()
	d := e.drag
	e.drag = nil
	if d == nil {
		e.mu.Unlock()
		return
	}
	e.fire(domain.DragCancel, d)
	e.mu.Unlock()
	if leftSurface {
		e.logger.Debug("drag left the canvas", "instance_id", d.source.ID)
	}
	e.endMessage(d)
}

func (e *Engine) endMessage(d *dragState) {
	if d.started {
		e.publish(&bus.DragEndInstance{})
	}
}

func (e *Engine) publish(out ...bus.Payload) {
	if e.publisher == nil {
		return
	}
	for _, p := range out {
		if err := e.publisher.Emit(p); err != nil {
			e.logger.Warn("drag publish failed", "type", p.MessageType(), "err", err)
		}
	}
}

func (e *Engine) fire(phase domain.DragPhase, d *dragState) {
	if e.hooks.OnDrag == nil {
		return
	}
	e.hooks.OnDrag(context.Background(), &domain.DragEvent{
		EventBase: domain.EventBase{
			Timestamp:  time.Now(),
			Type:       domain.EventDrag,
			DocumentID: e.docID,
		},
		Phase:      phase,
		InstanceID: d.source.ID,
		Component:  d.source.Component,
		Target:     copyTarget(d.target),
	})
}

func (e *Engine) contains(id string) bool {
	_, err := e.tree.FindInstance(id)
	return err == nil
}

func copyTarget(t *domain.DropTarget) *domain.DropTarget {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

// pointerTarget hit-tests the tree at the drag pointer. inside is false when
// no rendered instance contains the pointer.
func (e *Engine) pointerTarget(d *dragState, axis domain.Axis) (target *domain.DropTarget, inside bool) {
	p := d.pointer
	e.tree.Inspect(func(root *domain.Instance) {
		parent, in := e.hit(root, p, d.source.ID)
		inside = in
		if parent == nil {
			return
		}
		idx := e.dropIndex(parent, p, axis, d.source.ID)
		pos := p
		if r, ok := e.rects.RectOf(parent.ID); ok {
			pos = p.Sub(domain.Point{X: r.X, Y: r.Y})
		}
		target = &domain.DropTarget{ParentID: parent.ID, Index: idx, Position: pos}
	})
	return target, inside
}

// hit returns the deepest instance containing p that accepts children.
// Later children paint over earlier ones, so they are tested first.
// The subtree rooted at skip is invisible to the hit test.
func (e *Engine) hit(inst *domain.Instance, p domain.Point, skip string) (*domain.Instance, bool) {
	if inst.ID == skip {
		return nil, false
	}
	inside := false
	for i := len(inst.Children) - 1; i >= 0; i-- {
		c := inst.Children[i].Instance
		if c == nil {
			continue
		}
		found, in := e.hit(c, p, skip)
		if found != nil {
			return found, true
		}
		inside = inside || in
	}
	r, ok := e.rects.RectOf(inst.ID)
	if !ok || r.Empty() || !r.Contains(p) {
		return nil, inside
	}
	if e.registry.CanAcceptChild(inst.Component) {
		return inst, true
	}
	return nil, true
}

// dropIndex picks the slot in parent's children, counted without skip.
// The sibling whose center is nearest to p along axis wins; on an exact tie
// the later sibling wins. p before that center inserts before it. When every
// sibling center lines up on axis, the children are laid out along the other
// axis and that one decides.
func (e *Engine) dropIndex(parent *domain.Instance, p domain.Point, axis domain.Axis, skip string) int {
	type slotRect struct {
		slot int
		rect domain.Rect
	}
	var rendered []slotRect
	pos := 0
	for _, c := range parent.Children {
		if c.Instance != nil && c.Instance.ID == skip {
			continue
		}
		slot := pos
		pos++
		if c.Instance == nil {
			continue
		}
		r, ok := e.rects.RectOf(c.Instance.ID)
		if !ok || r.Empty() {
			continue
		}
		rendered = append(rendered, slotRect{slot: slot, rect: r})
	}
	if len(rendered) == 0 {
		return pos
	}

	if len(rendered) > 1 {
		aligned := true
		first := rendered[0].rect.Center().Along(axis)
		for _, sr := range rendered[1:] {
			if sr.rect.Center().Along(axis) != first {
				aligned = false
				break
			}
		}
		if aligned {
			axis = axis.Cross()
		}
	}

	best, bestDist := -1, math.Inf(1)
	var bestCenter float64
	for _, sr := range rendered {
		center := sr.rect.Center().Along(axis)
		if dist := math.Abs(p.Along(axis) - center); dist <= bestDist {
			best, bestDist, bestCenter = sr.slot, dist, center
		}
	}
	if p.Along(axis) < bestCenter {
		return best
	}
	return best + 1
}

// structuralTarget moves one sibling slot in the direction of delta.
func (e *Engine) structuralTarget(d *dragState, delta domain.Point) *domain.DropTarget {
	if d.isNew {
		var target *domain.DropTarget
		e.tree.Inspect(func(root *domain.Instance) {
			target = &domain.DropTarget{ParentID: root.ID, Index: len(root.Children)}
		})
		return target
	}
	dir := domain.Next
	if delta.X+delta.Y < 0 {
		dir = domain.Prev
	}
	sib, err := e.tree.FindClosestSiblingInstance(d.source.ID, dir)
	if err != nil || sib == nil {
		return nil
	}
	parentID, idx, err := e.tree.SiblingIndex(sib.ID)
	if err != nil {
		return nil
	}
	// Without the dragged instance the sibling sits at idx-1 when moving
	// forward, so idx lands right after it; moving back, idx is right before it.
	return &domain.DropTarget{ParentID: parentID, Index: idx}
}
