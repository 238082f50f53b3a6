package arbor_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/bus"
	"github.com/aretw0/arbor/pkg/canvas"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/pointer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func newDesigner(t *testing.T, opts ...arbor.Option) *arbor.Designer {
	t.Helper()
	opts = append([]arbor.Option{arbor.WithIDGenerator(seqIDs())}, opts...)
	d, err := arbor.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func settle(t *testing.T, d *arbor.Designer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))
}

// ids lists the instance children of the instance at id, "text:.." for text.
func ids(t *testing.T, d *arbor.Designer, id string) []string {
	t.Helper()
	inst, err := d.Store().FindInstance(id)
	require.NoError(t, err)
	out := []string{}
	for _, c := range inst.Children {
		if c.Instance == nil {
			out = append(out, "text:"+c.Text)
			continue
		}
		out = append(out, c.Instance.ID)
	}
	return out
}

type recorder struct {
	mu   sync.Mutex
	msgs []bus.Message
}

func record(t *testing.T, b *bus.Bus) *recorder {
	r := &recorder{}
	_, err := b.SubscribeAll(func(m bus.Message) {
		r.mu.Lock()
		r.msgs = append(r.msgs, m)
		r.mu.Unlock()
	})
	require.NoError(t, err)
	return r
}

func (r *recorder) types() []bus.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bus.Type, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

const twoBoxes = `{"id":"root","component":"Body","children":[
	{"id":"A","component":"Box","children":[]},
	{"id":"B","component":"Box","children":[]}
]}`

func TestInsert_DefaultsToRootAndSelects(t *testing.T) {
	d := newDesigner(t)
	rec := record(t, d.Bus())

	inst, err := d.Create("Box")
	require.NoError(t, err)
	require.NoError(t, d.Insert(inst, nil))
	settle(t, d)

	assert.Equal(t, []string{inst.ID}, ids(t, d, d.Store().Root()))
	assert.Equal(t, inst.ID, d.Selected())
	assert.Equal(t, []bus.Type{bus.TypeTreeChanged, bus.TypeSelectInstance}, rec.types())

	// With a Box selected, the next insert goes inside it.
	p, err := d.Create("Paragraph")
	require.NoError(t, err)
	require.NoError(t, d.Insert(p, nil))
	assert.Equal(t, []string{p.ID}, ids(t, d, inst.ID))

	// A selected leaf gets its new sibling right after it.
	img, err := d.Create("Image")
	require.NoError(t, err)
	require.NoError(t, d.Insert(img, &domain.Target{ParentID: d.Store().Root(), Index: 0}))
	btn, err := d.Create("Button")
	require.NoError(t, err)
	require.NoError(t, d.Insert(btn, nil))
	assert.Equal(t, []string{img.ID, btn.ID, inst.ID}, ids(t, d, d.Store().Root()))
}

func TestDeleteSelected_Unselects(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	require.NoError(t, d.Select("A"))
	settle(t, d)

	rec := record(t, d.Bus())
	require.NoError(t, d.Delete("A"))
	settle(t, d)

	assert.Empty(t, d.Selected())
	assert.Equal(t, []bus.Type{bus.TypeTreeChanged, bus.TypeUnselectInstance}, rec.types())

	// Deleting something else leaves the selection alone.
	require.NoError(t, d.Select("B"))
	box, _ := d.Create("Box")
	require.NoError(t, d.Insert(box, &domain.Target{ParentID: "root", Index: 0}))
	require.NoError(t, d.Select("B"))
	require.NoError(t, d.Delete(box.ID))
	assert.Equal(t, "B", d.Selected())
}

func TestDeleteAncestorOfSelected_Unselects(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(`{"id":"root","component":"Body","children":[
		{"id":"A","component":"Box","children":[{"id":"C","component":"Paragraph","children":["x"]}]}
	]}`))
	require.NoError(t, err)
	require.NoError(t, d.Select("C"))
	require.NoError(t, d.Delete("A"))
	assert.Empty(t, d.Selected())
}

func TestIntents_AppliedInPublishOrder(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)

	b := d.Bus()
	require.NoError(t, b.Emit(&bus.InsertInstance{
		Instance: domain.New("n", "Paragraph"),
		Target:   &domain.Target{ParentID: "A", Index: 0},
	}))
	require.NoError(t, b.Emit(&bus.ReparentInstance{ID: "n", ParentID: "B", Index: 0}))
	require.NoError(t, b.Emit(&bus.SetInstanceProps{ID: "n", Props: map[string]any{"class": "lead"}}))
	require.NoError(t, b.Emit(&bus.CloneInstance{ID: "n"}))
	settle(t, d)

	assert.Empty(t, ids(t, d, "A"))
	children := ids(t, d, "B")
	require.Len(t, children, 2)
	assert.Equal(t, "n", children[0])
	clone, err := d.Store().FindInstance(children[1])
	require.NoError(t, err)
	assert.Equal(t, "lead", clone.Props["class"])
	assert.Equal(t, clone.ID, d.Selected(), "clones become the selection")

	require.NoError(t, b.Emit(&bus.SetInstanceChildren{ID: "n", Children: []domain.Child{domain.TextChild("hi")}}))
	require.NoError(t, b.Emit(&bus.DeleteInstance{ID: clone.ID}))
	settle(t, d)
	assert.Equal(t, []string{"text:hi"}, ids(t, d, "n"))
	assert.Equal(t, []string{"n"}, ids(t, d, "B"))
	assert.Empty(t, d.Selected())
}

func TestRejectedIntent_LeavesTreeAndFiresHook(t *testing.T) {
	var rejected []*domain.MutationEvent
	var mu sync.Mutex
	d := newDesigner(t, arbor.WithLifecycleHooks(domain.LifecycleHooks{
		OnMutationRejected: func(_ context.Context, e *domain.MutationEvent) {
			mu.Lock()
			rejected = append(rejected, e)
			mu.Unlock()
		},
	}))
	_, err := d.Populate([]byte(`{"id":"root","component":"Body","children":[
		{"id":"A","component":"Box","children":[{"id":"C","component":"Box","children":[]}]}
	]}`))
	require.NoError(t, err)
	before := d.Document()

	require.NoError(t, d.Bus().Emit(&bus.ReparentInstance{ID: "A", ParentID: "C", Index: 0}))
	settle(t, d)

	after := d.Document()
	assert.Empty(t, cmp.Diff(before.Tree, after.Tree))
	assert.Equal(t, before.Version, after.Version)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0].Err, domain.ErrInvalidTarget)
	assert.Equal(t, domain.MutationReparent, rejected[0].Kind)
}

func TestDrag_NewComponentBetweenSiblings(t *testing.T) {
	rects := canvas.NewRectTable(map[string]domain.Rect{
		"root": {Width: 100, Height: 100},
		"A":    {Width: 80, Height: 40},
		"B":    {Y: 50, Width: 80, Height: 40},
	})
	d := newDesigner(t, arbor.WithRectSource(rects))
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)

	require.NoError(t, d.BeginComponentDrag("Heading"))
	d.HandleInput(pointer.PointerEvent{Phase: pointer.PhaseDown, PointerID: 1, IsPrimary: true, Page: domain.Point{X: 90, Y: 5}})
	d.HandleInput(pointer.PointerEvent{Phase: pointer.PhaseMove, PointerID: 1, Page: domain.Point{X: 90, Y: 47}})

	target, ok := d.Engine().Target()
	require.True(t, ok)
	assert.Equal(t, domain.Target{ParentID: "root", Index: 1}, target.Target())

	d.HandleInput(pointer.PointerEvent{Phase: pointer.PhaseUp, PointerID: 1, Page: domain.Point{X: 90, Y: 47}})
	settle(t, d)

	children := ids(t, d, "root")
	require.Len(t, children, 3)
	assert.Equal(t, "A", children[0])
	assert.Equal(t, "B", children[2])
	inserted, err := d.Store().FindInstance(children[1])
	require.NoError(t, err)
	assert.Equal(t, "Heading", inserted.Component)
	assert.Equal(t, inserted.ID, d.Selected())
}

func TestDrag_ExistingInstanceReorders(t *testing.T) {
	rects := canvas.NewRectTable(map[string]domain.Rect{
		"root": {Width: 100, Height: 100},
		"A":    {Width: 80, Height: 40},
		"B":    {Y: 50, Width: 80, Height: 40},
	})
	d := newDesigner(t, arbor.WithRectSource(rects))
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	rec := record(t, d.Bus())

	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseDown, Target: "A", Page: domain.Point{X: 40, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 75}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseUp, Page: domain.Point{X: 90, Y: 75}})
	settle(t, d)

	assert.Equal(t, []string{"B", "A"}, ids(t, d, "root"))
	assert.Equal(t, []bus.Type{
		bus.TypeDragStartInstance,
		bus.TypeDragInstance,
		bus.TypeDragInstance,
		bus.TypeDragEndInstance,
		bus.TypeReparentInstance,
		bus.TypeTreeChanged,
	}, rec.types())
}

func TestDrag_CancelNeverMutates(t *testing.T) {
	rects := canvas.NewRectTable(map[string]domain.Rect{
		"root": {Width: 100, Height: 100},
		"A":    {Width: 80, Height: 40},
		"B":    {Y: 50, Width: 80, Height: 40},
	})
	d := newDesigner(t, arbor.WithRectSource(rects))
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	version := d.Version()

	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseDown, Target: "A", Page: domain.Point{X: 40, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 75}})
	d.HandleInput(pointer.KeyEvent{Key: "Escape"})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseUp, Page: domain.Point{X: 90, Y: 75}})
	settle(t, d)

	assert.Equal(t, []string{"A", "B"}, ids(t, d, "root"))
	assert.Equal(t, version, d.Version())
}

func TestKeyboardReorder(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)

	d.HandleInput(pointer.KeyEvent{Key: "ArrowDown", Target: "A"})
	settle(t, d)
	assert.Equal(t, []string{"B", "A"}, ids(t, d, "root"))
}

func TestHover_SuppressedWhileDragging(t *testing.T) {
	rects := canvas.NewRectTable(map[string]domain.Rect{
		"root": {Width: 100, Height: 100},
		"A":    {Width: 80, Height: 40},
		"B":    {Y: 50, Width: 80, Height: 40},
	})
	d := newDesigner(t, arbor.WithRectSource(rects))
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)

	require.NoError(t, d.Bus().Emit(&bus.HoverInstance{ID: "A"}))
	settle(t, d)
	assert.Equal(t, "A", d.Hovered())

	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseDown, Target: "A", Page: domain.Point{X: 40, Y: 20}})
	d.HandleInput(pointer.MouseEvent{Phase: pointer.PhaseMove, Page: domain.Point{X: 90, Y: 75}})
	require.NoError(t, d.Bus().Emit(&bus.HoverInstance{ID: "B"}))
	settle(t, d)
	assert.Equal(t, "A", d.Hovered())

	require.NoError(t, d.Bus().Emit(&bus.ScrollState{Scrolling: true}))
	settle(t, d)
	assert.Empty(t, d.Hovered())
	assert.False(t, d.ToolsVisible())
}

func TestPreviewMode_UnselectsAndHidesTools(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	require.NoError(t, d.Select("A"))
	settle(t, d)

	rec := record(t, d.Bus())
	d.SetPreview(true)
	settle(t, d)

	assert.True(t, d.Preview())
	assert.False(t, d.ToolsVisible())
	assert.Empty(t, d.Selected())
	assert.Contains(t, rec.types(), bus.TypeUnselectInstance)
	assert.Contains(t, rec.types(), bus.TypePreviewMode)
}

func TestTextEditing_OnlyContentEditable(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(`{"id":"root","component":"Body","children":[
		{"id":"p","component":"Paragraph","children":["hello"]},
		{"id":"box","component":"Box","children":[]}
	]}`))
	require.NoError(t, err)

	require.NoError(t, d.Bus().Emit(&bus.TextEditingInstance{ID: "box"}))
	settle(t, d)
	assert.Empty(t, d.Editing())

	require.NoError(t, d.Bus().Emit(&bus.TextEditingInstance{ID: "p"}))
	settle(t, d)
	assert.Equal(t, "p", d.Editing())
	assert.Equal(t, "p", d.Selected())

	require.NoError(t, d.Bus().Emit(&bus.ClickCanvas{}))
	settle(t, d)
	assert.Empty(t, d.Editing())
}

func TestMirror_StaysInSync(t *testing.T) {
	d := newDesigner(t)
	mirror := canvas.NewMirror()
	require.NoError(t, mirror.Attach(d.Bus()))
	defer mirror.Detach()

	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	box, _ := d.Create("Box")
	require.NoError(t, d.Insert(box, &domain.Target{ParentID: "A", Index: 0}))
	require.NoError(t, d.SetProps("B", map[string]any{"class": "wide"}))
	require.NoError(t, d.Reparent("B", domain.Target{ParentID: "root", Index: 0}))
	require.NoError(t, d.Delete(box.ID))
	settle(t, d)

	want := d.Document()
	got, version := mirror.Tree()
	assert.Equal(t, want.Version, version)
	assert.Empty(t, cmp.Diff(want.Tree, got))
}

func TestMirror_AcrossProcessBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDesigner(t)
	canvasBus := bus.NewBus()
	defer canvasBus.Close()

	left, right := memory.NewPipe()
	go func() { _ = bus.NewBridge(d.Bus(), left, bus.WithOrigin("designer")).Run(ctx) }()
	go func() { _ = bus.NewBridge(canvasBus, right, bus.WithOrigin("canvas")).Run(ctx) }()
	require.Eventually(t, func() bool {
		return d.Bus().Subscribers() == 2 && canvasBus.Subscribers() == 1
	}, time.Second, 5*time.Millisecond)

	mirror := canvas.NewMirror()
	require.NoError(t, mirror.Attach(canvasBus))
	require.Eventually(t, mirror.Synced, time.Second, 5*time.Millisecond)

	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	require.NoError(t, canvasBus.Emit(&bus.DeleteInstance{ID: "A"}))

	require.Eventually(t, func() bool {
		tree, _ := mirror.Tree()
		_, hasA := tree.Instances["A"]
		_, hasB := tree.Instances["B"]
		return !hasA && hasB
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"B"}, ids(t, d, "root"))
}

func TestSyncRequest_AnsweredWithSnapshot(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	settle(t, d)

	var got *bus.TreeChanged
	var mu sync.Mutex
	_, err = bus.On(d.Bus(), func(p *bus.TreeChanged) {
		mu.Lock()
		got = p
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, d.Bus().Emit(&bus.SyncRequest{}))
	settle(t, d)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	require.NotNil(t, got.Tree)
	assert.Equal(t, d.Version(), got.Version)
	assert.Len(t, got.Tree.Instances, 3)
}

func TestLoad_KeepsVersionsMonotonic(t *testing.T) {
	var docs []*domain.Document
	d := newDesigner(t, arbor.WithDocumentID("home"), arbor.WithCommitListener(func(doc *domain.Document) {
		docs = append(docs, doc)
	}))

	root := domain.New("r", "Body")
	root.Children = append(root.Children, domain.InstanceChild(domain.New("x", "Box")))
	require.NoError(t, d.Load(&domain.Document{ID: "home", Version: 41, Tree: domain.Flatten(root)}))
	assert.Equal(t, uint64(41), d.Version())

	require.NoError(t, d.Delete("x"))
	assert.Equal(t, uint64(42), d.Version())

	require.Len(t, docs, 2)
	assert.Equal(t, "home", docs[1].ID)
	assert.Equal(t, uint64(42), docs[1].Version)
	assert.NotContains(t, docs[1].Tree.Instances, "x")

	err := d.Load(&domain.Document{ID: "home", Tree: domain.SerializedTree{Root: "missing"}})
	assert.ErrorIs(t, err, domain.ErrMalformedTree)
	assert.Equal(t, uint64(42), d.Version())
}

func TestPopulateSerializeRoundTrip(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(`{"id":"root","component":"Body","children":[
		{"id":"h","component":"Heading","props":{"tag":"h2"},"children":["Title ",{"id":"b","component":"Bold","children":["bold"]}]},
		{"id":"f","component":"Form","children":[{"id":"i","component":"Input","props":{"value":"x"},"children":[]}]}
	]}`))
	require.NoError(t, err)
	first := d.Document()

	other := newDesigner(t)
	require.NoError(t, other.Load(first))
	assert.Empty(t, cmp.Diff(first.Tree, other.Document().Tree))
	assert.Empty(t, cmp.Diff(d.Store().Snapshot(), other.Store().Snapshot()))
}

func TestMirror_AttachedBeforeDesigner(t *testing.T) {
	b := bus.NewBus()
	t.Cleanup(func() { _ = b.Close() })

	m := canvas.NewMirror()
	require.NoError(t, m.Attach(b))
	t.Cleanup(m.Detach)

	d := newDesigner(t, arbor.WithBus(b))
	for _, component := range []string{"Box", "Heading", "Paragraph"} {
		inst, err := d.Create(component)
		require.NoError(t, err)
		require.NoError(t, d.Insert(inst, &domain.Target{ParentID: d.Store().Root()}))
	}
	settle(t, d)

	assert.True(t, m.Synced())
	assert.Equal(t, d.Version(), m.Version())
	tree, _ := m.Tree()
	assert.Len(t, tree.Instances, 4)
}

func TestSubmit_ReportsOutcome(t *testing.T) {
	d := newDesigner(t)
	_, err := d.Populate([]byte(twoBoxes))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Submit(ctx, bus.New(&bus.ReparentInstance{ID: "A", ParentID: "B"})))
	assert.Equal(t, []string{"A"}, ids(t, d, "B"))

	version := d.Version()
	err = d.Submit(ctx, bus.New(&bus.ReparentInstance{ID: "B", ParentID: "A"}))
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
	assert.Equal(t, version, d.Version())

	err = d.Submit(ctx, bus.Message{Type: "teleport"})
	assert.ErrorIs(t, err, bus.ErrUnknownType)
}
