package canvas

import (
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// RectTable is a ports.RectSource backed by a map.
// Safe for concurrent use.
type RectTable struct {
	mu    sync.RWMutex
	rects map[string]domain.Rect
}

var _ ports.RectSource = (*RectTable)(nil)

// NewRectTable creates a table from an optional initial layout.
func NewRectTable(initial map[string]domain.Rect) *RectTable {
	t := &RectTable{rects: make(map[string]domain.Rect, len(initial))}
	for id, r := range initial {
		t.rects[id] = r
	}
	return t
}

// RectOf returns the rect of id.
func (t *RectTable) RectOf(id string) (domain.Rect, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rects[id]
	return r, ok
}

// Set records the rect of id.
func (t *RectTable) Set(id string, r domain.Rect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rects[id] = r
}

// Delete forgets id.
func (t *RectTable) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rects, id)
}

// Replace swaps the whole layout, as after a frame.
func (t *RectTable) Replace(layout map[string]domain.Rect) {
	next := make(map[string]domain.Rect, len(layout))
	for id, r := range layout {
		next[id] = r
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rects = next
}

// Len returns the number of known rects.
func (t *RectTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rects)
}

// StackLayout lays out the children of every instance top to bottom.
// Each instance is rowHeight tall plus the height of its children, and
// children are indented by indent. Text leaves take a row of their own.
// It gives tests and the console a deterministic geometry.
func StackLayout(root *domain.Instance, width, rowHeight, indent float64) map[string]domain.Rect {
	out := make(map[string]domain.Rect)
	var place func(inst *domain.Instance, x, y, w float64) float64
	place = func(inst *domain.Instance, x, y, w float64) float64 {
		h := rowHeight
		for _, c := range inst.Children {
			if c.Instance == nil {
				h += rowHeight
				continue
			}
			h += place(c.Instance, x+indent, y+h, w-2*indent)
		}
		h += rowHeight / 2
		out[inst.ID] = domain.Rect{X: x, Y: y, Width: w, Height: h}
		return h
	}
	if root != nil {
		place(root, 0, 0, width)
	}
	return out
}
