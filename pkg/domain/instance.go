package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Instance is a node of the page tree: a component with ordered children.
type Instance struct {
	ID        string         `json:"id"`
	Component string         `json:"component"`
	Children  []Child        `json:"children"`
	Props     map[string]any `json:"props,omitempty"`
}

// Child is either a nested instance or a text leaf.
// Exactly one of Instance or Text is meaningful: a nil Instance means text.
type Child struct {
	Instance *Instance
	Text     string
}

// InstanceChild wraps an instance as a child.
func InstanceChild(inst *Instance) Child {
	return Child{Instance: inst}
}

// TextChild wraps a string as a text leaf.
func TextChild(text string) Child {
	return Child{Text: text}
}

// IsText reports whether the child is a text leaf.
func (c Child) IsText() bool {
	return c.Instance == nil
}

// MarshalJSON encodes text leaves as JSON strings and instances as objects.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.Instance == nil {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Instance)
}

// UnmarshalJSON accepts either a JSON string or an instance object.
func (c *Child) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty child")
	}
	switch data[0] {
	case '"':
		c.Instance = nil
		return json.Unmarshal(data, &c.Text)
	case '{':
		var inst Instance
		if err := json.Unmarshal(data, &inst); err != nil {
			return err
		}
		c.Instance = &inst
		c.Text = ""
		return nil
	default:
		return fmt.Errorf("child must be a string or an object, got %q", data[:1])
	}
}

// New creates an instance with no children.
func New(id, component string) *Instance {
	return &Instance{
		ID:        id,
		Component: component,
		Children:  []Child{},
	}
}

// DeepCopy returns an independent copy of the subtree, ids included.
func (i *Instance) DeepCopy() *Instance {
	if i == nil {
		return nil
	}
	out := &Instance{
		ID:        i.ID,
		Component: i.Component,
		Children:  make([]Child, len(i.Children)),
		Props:     CopyProps(i.Props),
	}
	for idx, c := range i.Children {
		if c.Instance != nil {
			out.Children[idx] = Child{Instance: c.Instance.DeepCopy()}
		} else {
			out.Children[idx] = Child{Text: c.Text}
		}
	}
	return out
}

// Walk visits the subtree depth-first in document order.
// Returning false from fn stops the descent below that instance.
func (i *Instance) Walk(fn func(inst, parent *Instance) bool) {
	walk(i, nil, fn)
}

func walk(inst, parent *Instance, fn func(inst, parent *Instance) bool) {
	if inst == nil || !fn(inst, parent) {
		return
	}
	for _, c := range inst.Children {
		if c.Instance != nil {
			walk(c.Instance, inst, fn)
		}
	}
}

// IDs returns every id in the subtree in document order.
func (i *Instance) IDs() []string {
	var ids []string
	i.Walk(func(inst, _ *Instance) bool {
		ids = append(ids, inst.ID)
		return true
	})
	return ids
}

// Find returns the instance with the given id inside the subtree.
func (i *Instance) Find(id string) *Instance {
	var found *Instance
	i.Walk(func(inst, _ *Instance) bool {
		if found != nil {
			return false
		}
		if inst.ID == id {
			found = inst
			return false
		}
		return true
	})
	return found
}

// ChildIndex returns the position of the child instance id in i.Children, or -1.
func (i *Instance) ChildIndex(id string) int {
	for idx, c := range i.Children {
		if c.Instance != nil && c.Instance.ID == id {
			return idx
		}
	}
	return -1
}

// CopyProps deep-copies a props map. Nested maps and slices are copied too.
func CopyProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies a prop value. Maps and slices are copied, scalars returned as is.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyProps(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
