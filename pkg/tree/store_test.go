package tree_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/aretw0/arbor/pkg/tree"
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

// newStore returns a store whose root is "id-1".
func newStore(t *testing.T) *tree.Store {
	t.Helper()
	return tree.New(tree.WithIDGenerator(seqIDs()))
}

func mustCreate(t *testing.T, s *tree.Store, component string) *domain.Instance {
	t.Helper()
	inst, err := s.CreateInstance(component)
	require.NoError(t, err)
	return inst
}

func mustInsert(t *testing.T, s *tree.Store, component, parent string, idx int) string {
	t.Helper()
	inst := mustCreate(t, s, component)
	require.NoError(t, s.InsertInstance(inst, domain.Target{ParentID: parent, Index: idx}))
	return inst.ID
}

func childIDs(inst *domain.Instance) []string {
	var ids []string
	for _, c := range inst.Children {
		if c.Instance != nil {
			ids = append(ids, c.Instance.ID)
		} else {
			ids = append(ids, "text:"+c.Text)
		}
	}
	return ids
}

func TestCreateInstance(t *testing.T) {
	s := newStore(t)

	inst, err := s.CreateInstance("Heading")
	require.NoError(t, err)
	assert.Equal(t, "id-2", inst.ID)
	assert.Empty(t, inst.Children)
	assert.Equal(t, "h1", inst.Props["tag"])
	assert.False(t, s.Contains(inst.ID), "created instances are detached")

	_, err = s.CreateInstance("Marquee")
	assert.ErrorIs(t, err, domain.ErrUnknownComponentType)
}

func TestInsertInstance(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	v0 := s.Version()

	a := mustInsert(t, s, "Box", root, 0)
	b := mustInsert(t, s, "Box", root, 99) // clamped to the end
	c := mustInsert(t, s, "Box", root, -3) // clamped to the start

	assert.Equal(t, []string{c, a, b}, childIDs(s.Snapshot()))
	assert.Equal(t, v0+3, s.Version())

	path, err := s.GetPath(b)
	require.NoError(t, err)
	assert.Equal(t, domain.Path{root, b}, path)
}

func TestInsertInstance_Rejections(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	box := mustInsert(t, s, "Box", root, 0)
	input := mustInsert(t, s, "Input", root, 1)
	before := s.Snapshot()
	version := s.Version()

	tests := []struct {
		name   string
		inst   func() *domain.Instance
		target domain.Target
		want   error
	}{
		{"missing parent", func() *domain.Instance { return mustCreate(t, s, "Box") },
			domain.Target{ParentID: "ghost"}, domain.ErrInvalidTarget},
		{"duplicate id", func() *domain.Instance { return domain.New(box, "Box") },
			domain.Target{ParentID: root}, domain.ErrInvalidTarget},
		{"cycle", func() *domain.Instance {
			n := domain.New("fresh", "Box")
			n.Children = append(n.Children, domain.InstanceChild(domain.New(box, "Box")))
			return n
		}, domain.Target{ParentID: box}, domain.ErrInvalidTarget},
		{"leaf parent", func() *domain.Instance { return mustCreate(t, s, "Box") },
			domain.Target{ParentID: input}, domain.ErrInvalidTarget},
		{"nested leaf with children", func() *domain.Instance {
			outer := domain.New("outer", "Box")
			img := domain.New("img", "Image")
			img.Children = append(img.Children, domain.InstanceChild(domain.New("inner", "Box")))
			outer.Children = append(outer.Children, domain.InstanceChild(img))
			return outer
		}, domain.Target{ParentID: root}, domain.ErrInvalidTarget},
		{"nested leaf with text", func() *domain.Instance {
			outer := domain.New("outer", "Box")
			img := domain.New("img", "Image")
			img.Children = append(img.Children, domain.TextChild("caption"))
			outer.Children = append(outer.Children, domain.InstanceChild(img))
			return outer
		}, domain.Target{ParentID: root}, domain.ErrInvalidTarget},
		{"unknown component", func() *domain.Instance { return domain.New("x", "Marquee") },
			domain.Target{ParentID: root}, domain.ErrUnknownComponentType},
		{"nil", func() *domain.Instance { return nil },
			domain.Target{ParentID: root}, domain.ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.InsertInstance(tt.inst(), tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, cmp.Diff(before, s.Snapshot()), "failed inserts must not change the tree")
	assert.Equal(t, version, s.Version())
}

func TestInsertInstance_OwnsItsCopy(t *testing.T) {
	s := newStore(t)
	inst := mustCreate(t, s, "Box")
	require.NoError(t, s.InsertInstance(inst, domain.Target{ParentID: s.Root()}))

	inst.Component = "Form"
	found, err := s.FindInstance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Box", found.Component)
}

func TestDeleteInstance(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	box := mustInsert(t, s, "Box", root, 0)
	inner := mustInsert(t, s, "Paragraph", box, 0)

	removed, err := s.DeleteInstance(box)
	require.NoError(t, err)
	assert.Equal(t, box, removed.ID)
	assert.Equal(t, []string{inner}, childIDs(removed))
	assert.False(t, s.Contains(box))
	assert.False(t, s.Contains(inner))
	assert.Equal(t, 1, s.Len())

	_, err = s.DeleteInstance(box)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.DeleteInstance(root)
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}

func TestReparentInstance(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	a := mustInsert(t, s, "Box", root, 0)
	b := mustInsert(t, s, "Box", root, 1)
	c := mustInsert(t, s, "Box", root, 2)

	t.Run("same parent excludes the moved id first", func(t *testing.T) {
		require.NoError(t, s.ReparentInstance(a, domain.Target{ParentID: root, Index: 1}))
		assert.Equal(t, []string{b, a, c}, childIDs(s.Snapshot()))

		require.NoError(t, s.ReparentInstance(b, domain.Target{ParentID: root, Index: 10}))
		assert.Equal(t, []string{a, c, b}, childIDs(s.Snapshot()))
	})

	t.Run("into another parent", func(t *testing.T) {
		require.NoError(t, s.ReparentInstance(c, domain.Target{ParentID: a, Index: 0}))
		path, err := s.GetPath(c)
		require.NoError(t, err)
		assert.Equal(t, domain.Path{root, a, c}, path)
	})

	t.Run("rejections", func(t *testing.T) {
		before := s.Snapshot()

		assert.ErrorIs(t, s.ReparentInstance(a, domain.Target{ParentID: c}), domain.ErrInvalidTarget, "into own descendant")
		assert.ErrorIs(t, s.ReparentInstance(a, domain.Target{ParentID: a}), domain.ErrInvalidTarget, "into itself")
		assert.ErrorIs(t, s.ReparentInstance(root, domain.Target{ParentID: a}), domain.ErrInvalidTarget, "root")
		assert.ErrorIs(t, s.ReparentInstance(a, domain.Target{ParentID: "ghost"}), domain.ErrInvalidTarget, "missing parent")
		assert.ErrorIs(t, s.ReparentInstance("ghost", domain.Target{ParentID: root}), domain.ErrNotFound)

		assert.Empty(t, cmp.Diff(before, s.Snapshot()))
	})
}

func TestCloneInstance_IsomorphicWithFreshIDs(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	box := mustInsert(t, s, "Box", root, 0)
	p := mustInsert(t, s, "Paragraph", box, 0)
	require.NoError(t, s.SetInstanceChildren(p, []domain.Child{domain.TextChild("hello")}))
	require.NoError(t, s.SetInstanceProps(box, map[string]any{"class": "card"}))

	orig, err := s.FindInstance(box)
	require.NoError(t, err)
	clone, err := s.CloneInstance(box)
	require.NoError(t, err)

	origIDs := map[string]bool{}
	for _, id := range orig.IDs() {
		origIDs[id] = true
	}
	for _, id := range clone.IDs() {
		assert.False(t, origIDs[id], "clone reuses id %s", id)
	}

	ignoreIDs := cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".ID"
	}, cmp.Ignore())
	assert.Empty(t, cmp.Diff(orig, clone, ignoreIDs), "clone must be isomorphic")
	assert.False(t, s.Contains(clone.ID), "clones are not inserted")

	_, err = s.CloneInstance("ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetInstanceChildren(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	a := mustInsert(t, s, "Box", root, 0)
	b := mustInsert(t, s, "Box", root, 1)
	nested := mustInsert(t, s, "Box", b, 0)

	fresh := domain.New("fresh", "Paragraph")
	err := s.SetInstanceChildren(root, []domain.Child{
		domain.TextChild("intro"),
		domain.InstanceChild(fresh),
		domain.InstanceChild(&domain.Instance{ID: a}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"text:intro", "fresh", a}, childIDs(s.Snapshot()))
	assert.False(t, s.Contains(b), "dropped children are deleted")
	assert.False(t, s.Contains(nested))
	path, err := s.GetPath("fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.Path{root, "fresh"}, path)

	t.Run("rejects foreign instance", func(t *testing.T) {
		inner := mustInsert(t, s, "Box", a, 0)
		err := s.SetInstanceChildren(root, []domain.Child{domain.InstanceChild(&domain.Instance{ID: inner})})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		err := s.SetInstanceChildren(root, []domain.Child{
			domain.InstanceChild(&domain.Instance{ID: a}),
			domain.InstanceChild(&domain.Instance{ID: a}),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
	})

	t.Run("leaf rejects children", func(t *testing.T) {
		input := mustInsert(t, s, "Input", root, 0)
		err := s.SetInstanceChildren(input, []domain.Child{domain.TextChild("x")})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
		err = s.SetInstanceChildren(input, []domain.Child{domain.InstanceChild(domain.New("y", "Box"))})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
		assert.NoError(t, s.SetInstanceChildren(input, nil), "clearing is always allowed")
	})

	t.Run("rejects nested leaf with children", func(t *testing.T) {
		img := domain.New("img", "Image")
		img.Children = append(img.Children, domain.InstanceChild(domain.New("inside", "Box")))
		err := s.SetInstanceChildren(a, []domain.Child{domain.InstanceChild(img)})
		assert.ErrorIs(t, err, domain.ErrInvalidTarget)
		assert.False(t, s.Contains("img"))
	})

	assert.ErrorIs(t, s.SetInstanceChildren("ghost", nil), domain.ErrNotFound)
}

func TestSetInstanceProps(t *testing.T) {
	s := newStore(t)
	link := mustInsert(t, s, "Link", s.Root(), 0)

	require.NoError(t, s.SetInstanceProps(link, map[string]any{
		"href":  "/about",
		"style": map[string]any{"color": "red", "margin": "4px"},
	}))
	require.NoError(t, s.SetInstanceProps(link, map[string]any{
		"style": map[string]any{"color": "blue", "margin": nil},
	}))

	found, err := s.FindInstance(link)
	require.NoError(t, err)
	assert.Equal(t, "/about", found.Props["href"])
	assert.Equal(t, map[string]any{"color": "blue"}, found.Props["style"])

	require.NoError(t, s.SetInstanceProps(link, map[string]any{"style": nil}))
	found, _ = s.FindInstance(link)
	assert.NotContains(t, found.Props, "style")

	err = s.SetInstanceProps(link, map[string]any{"href": 42})
	assert.ErrorIs(t, err, domain.ErrInvalidProps)
	assert.Len(t, schema.ValidationErrors(err), 1)

	assert.ErrorIs(t, s.SetInstanceProps("ghost", nil), domain.ErrNotFound)
}

func TestPopulate_RoundTrip(t *testing.T) {
	s := newStore(t)
	root := s.Root()
	box := mustInsert(t, s, "Box", root, 0)
	p := mustInsert(t, s, "Paragraph", box, 0)
	mustInsert(t, s, "Image", root, 1)
	require.NoError(t, s.SetInstanceChildren(p, []domain.Child{domain.TextChild("Hello "), domain.TextChild("world")}))
	require.NoError(t, s.SetInstanceProps(box, map[string]any{"class": "hero", "style": map[string]any{"color": "red"}}))

	flat, _ := s.Serialize()
	data, err := json.Marshal(flat)
	require.NoError(t, err)

	other := newStore(t)
	got, err := other.Populate(data)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(s.Snapshot(), got))
	assert.Empty(t, cmp.Diff(s.Snapshot(), other.Snapshot()))

	nested, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	third := newStore(t)
	got, err = third.Populate(nested)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(s.Snapshot(), got), "nested form round-trips too")
}

func TestPopulate_Malformed(t *testing.T) {
	s := newStore(t)
	before := s.Snapshot()

	tests := map[string]string{
		"not json":          `{"root":`,
		"dangling child":    `{"root":"r","instances":{"r":{"id":"r","component":"Body","children":[{"type":"id","value":"x"}]}}}`,
		"orphan":            `{"root":"r","instances":{"r":{"id":"r","component":"Body","children":[]},"o":{"id":"o","component":"Box","children":[]}}}`,
		"unknown component": `{"root":"r","instances":{"r":{"id":"r","component":"Marquee","children":[]}}}`,
		"leaf with child":   `{"root":"r","instances":{"r":{"id":"r","component":"Body","children":[{"type":"id","value":"i"}]},"i":{"id":"i","component":"Image","children":[{"type":"id","value":"b"}]},"b":{"id":"b","component":"Box","children":[]}}}`,
		"nested leaf text":  `{"id":"r","component":"Body","children":[{"id":"i","component":"Input","children":["x"]}]}`,
		"nested duplicate":  `{"id":"r","component":"Body","children":[{"id":"a","component":"Box","children":[]},{"id":"a","component":"Box","children":[]}]}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Populate([]byte(data))
			assert.ErrorIs(t, err, domain.ErrMalformedTree)
		})
	}
	assert.Empty(t, cmp.Diff(before, s.Snapshot()))
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := newStore(t)
	root := s.Root()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := s.CreateInstance("Box")
			if err != nil {
				return
			}
			_ = s.InsertInstance(inst, domain.Target{ParentID: root, Index: 0})
			_, _ = s.GetPath(inst.ID)
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 21, s.Len())
	assert.Equal(t, uint64(20), s.Version())
}
