package domain

// Target addresses a slot in a parent's children list.
type Target struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// DropTarget is where a drag would land if released now.
// Position is the pointer location relative to the parent's rect.
type DropTarget struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
	Position Point  `json:"position"`
}

// Target converts the drop target into a mutation target.
func (d DropTarget) Target() Target {
	return Target{ParentID: d.ParentID, Index: d.Index}
}

// Path lists instance ids from the root to a target, inclusive.
type Path []string

// Contains reports whether id is on the path.
func (p Path) Contains(id string) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

// Direction picks a neighbour in a children list.
type Direction int

const (
	Prev Direction = iota
	Next
)
