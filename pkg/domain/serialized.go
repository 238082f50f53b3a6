package domain

import "time"

// ChildType tags a serialized child reference.
type ChildType string

const (
	ChildID   ChildType = "id"
	ChildText ChildType = "text"
)

// SerializedChild references a child instance by id or carries a text leaf.
type SerializedChild struct {
	Type  ChildType `json:"type"`
	Value string    `json:"value"`
}

// SerializedInstance is the flat form of one instance.
type SerializedInstance struct {
	ID        string            `json:"id"`
	Component string            `json:"component"`
	Children  []SerializedChild `json:"children"`
	Props     map[string]any    `json:"props,omitempty"`
}

// SerializedTree is the flat, id-indexed form of a whole tree.
// It is what storage persists and what merge patches are computed against.
type SerializedTree struct {
	Root      string                        `json:"root"`
	Instances map[string]SerializedInstance `json:"instances"`
}

// Flatten converts a nested tree to its flat form.
func Flatten(root *Instance) SerializedTree {
	out := SerializedTree{Instances: make(map[string]SerializedInstance)}
	if root == nil {
		return out
	}
	out.Root = root.ID
	root.Walk(func(inst, _ *Instance) bool {
		si := SerializedInstance{
			ID:        inst.ID,
			Component: inst.Component,
			Children:  make([]SerializedChild, 0, len(inst.Children)),
			Props:     CopyProps(inst.Props),
		}
		for _, c := range inst.Children {
			if c.Instance != nil {
				si.Children = append(si.Children, SerializedChild{Type: ChildID, Value: c.Instance.ID})
			} else {
				si.Children = append(si.Children, SerializedChild{Type: ChildText, Value: c.Text})
			}
		}
		out.Instances[inst.ID] = si
		return true
	})
	return out
}

// Document is a persisted, versioned tree.
type Document struct {
	ID        string         `json:"id"`
	Version   uint64         `json:"version"`
	Tree      SerializedTree `json:"tree"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the tree.
func (t SerializedTree) Clone() SerializedTree {
	out := SerializedTree{Root: t.Root, Instances: make(map[string]SerializedInstance, len(t.Instances))}
	for id, si := range t.Instances {
		si.Children = append([]SerializedChild(nil), si.Children...)
		si.Props = CopyProps(si.Props)
		out.Instances[id] = si
	}
	return out
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Tree = d.Tree.Clone()
	return &out
}

// Expand rebuilds the nested form of t. References to missing instances and
// repeated references are skipped, so a tree that failed validation still
// expands to something finite. Returns nil if the root is missing.
func Expand(t SerializedTree) *Instance {
	return expand(t, t.Root, make(map[string]bool))
}

func expand(t SerializedTree, id string, seen map[string]bool) *Instance {
	si, ok := t.Instances[id]
	if !ok || seen[id] {
		return nil
	}
	seen[id] = true
	inst := &Instance{
		ID:        id,
		Component: si.Component,
		Children:  make([]Child, 0, len(si.Children)),
		Props:     CopyProps(si.Props),
	}
	for _, c := range si.Children {
		if c.Type == ChildText {
			inst.Children = append(inst.Children, TextChild(c.Value))
			continue
		}
		if child := expand(t, c.Value, seen); child != nil {
			inst.Children = append(inst.Children, InstanceChild(child))
		}
	}
	return inst
}
