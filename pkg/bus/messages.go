package bus

import (
	"encoding/json"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
)

// Type is the tag of a bus message.
type Type string

const (
	TypeInsertInstance      Type = "insertInstance"
	TypeDeleteInstance      Type = "deleteInstance"
	TypeReparentInstance    Type = "reparentInstance"
	TypeCloneInstance       Type = "cloneInstance"
	TypeDragStartInstance   Type = "dragStartInstance"
	TypeDragInstance        Type = "dragInstance"
	TypeDragEndInstance     Type = "dragEndInstance"
	TypeSelectInstance      Type = "selectInstance"
	TypeUnselectInstance    Type = "unselectInstance"
	TypeClickCanvas         Type = "clickCanvas"
	TypeHoverInstance       Type = "hoverInstance"
	TypeSetInstanceProps    Type = "setInstanceProps"
	TypeSetInstanceChildren Type = "setInstanceChildren"
	TypeTextEditingInstance Type = "textEditingInstance"
	TypeScrollState         Type = "scrollState"
	TypePreviewMode         Type = "previewMode"
	TypeTreeChanged         Type = "treeChanged"
	TypeSyncRequest         Type = "syncRequest"
)

// Payload is the body of a message. The set of payloads is closed.
type Payload interface {
	MessageType() Type
	isPayload()
}

// contract maps every known type to a constructor of its payload.
var contract = map[Type]func() Payload{
	TypeInsertInstance:      func() Payload { return &InsertInstance{} },
	TypeDeleteInstance:      func() Payload { return &DeleteInstance{} },
	TypeReparentInstance:    func() Payload { return &ReparentInstance{} },
	TypeCloneInstance:       func() Payload { return &CloneInstance{} },
	TypeDragStartInstance:   func() Payload { return &DragStartInstance{} },
	TypeDragInstance:        func() Payload { return &DragInstance{} },
	TypeDragEndInstance:     func() Payload { return &DragEndInstance{} },
	TypeSelectInstance:      func() Payload { return &SelectInstance{} },
	TypeUnselectInstance:    func() Payload { return &UnselectInstance{} },
	TypeClickCanvas:         func() Payload { return &ClickCanvas{} },
	TypeHoverInstance:       func() Payload { return &HoverInstance{} },
	TypeSetInstanceProps:    func() Payload { return &SetInstanceProps{} },
	TypeSetInstanceChildren: func() Payload { return &SetInstanceChildren{} },
	TypeTextEditingInstance: func() Payload { return &TextEditingInstance{} },
	TypeScrollState:         func() Payload { return &ScrollState{} },
	TypePreviewMode:         func() Payload { return &PreviewMode{} },
	TypeTreeChanged:         func() Payload { return &TreeChanged{} },
	TypeSyncRequest:         func() Payload { return &SyncRequest{} },
}

// Known reports whether t is part of the message contract.
func Known(t Type) bool {
	_, ok := contract[t]
	return ok
}

// Types lists the contract in sorted order.
func Types() []Type {
	out := make([]Type, 0, len(contract))
	for t := range contract {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InsertInstance asks the owner of the tree to insert a new subtree.
// A nil Target appends to the selected instance, or to the root.
type InsertInstance struct {
	Instance *domain.Instance `json:"instance"`
	Target   *domain.Target   `json:"target,omitempty"`
}

type DeleteInstance struct {
	ID string `json:"id"`
}

type ReparentInstance struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

type CloneInstance struct {
	ID string `json:"id"`
}

type DragStartInstance struct{}

// DragInstance reports the dragged instance and where it currently is.
// DropTarget is nil while the pointer is over nothing that accepts it.
type DragInstance struct {
	Instance      *domain.Instance   `json:"instance"`
	CurrentOffset domain.Point       `json:"currentOffset"`
	DropTarget    *domain.DropTarget `json:"dropTarget,omitempty"`
}

type DragEndInstance struct{}

type SelectInstance struct {
	ID string `json:"id"`
}

type UnselectInstance struct{}

// ClickCanvas is a click on empty canvas space.
type ClickCanvas struct{}

// HoverInstance reports the hovered instance; an empty ID clears hover.
type HoverInstance struct {
	ID string `json:"id"`
}

// SetInstanceProps merges Props into the instance. Nil values delete keys.
type SetInstanceProps struct {
	ID    string         `json:"id"`
	Props map[string]any `json:"props"`
}

type SetInstanceChildren struct {
	ID       string         `json:"id"`
	Children []domain.Child `json:"children"`
}

// TextEditingInstance marks an instance whose text is being edited inline.
// An empty ID ends editing.
type TextEditingInstance struct {
	ID string `json:"id"`
}

type ScrollState struct {
	Scrolling bool `json:"scrolling"`
}

type PreviewMode struct {
	Enabled bool `json:"enabled"`
}

// TreeChanged carries the tree at Version. Patch is a JSON merge patch
// against the flat tree at Base; Tree is a full snapshot and wins when set.
type TreeChanged struct {
	Version uint64                 `json:"version"`
	Base    uint64                 `json:"base"`
	Patch   json.RawMessage        `json:"patch,omitempty"`
	Tree    *domain.SerializedTree `json:"tree,omitempty"`
}

// SyncRequest asks the tree owner for a full TreeChanged snapshot.
type SyncRequest struct{}

func (*InsertInstance) MessageType() Type      { return TypeInsertInstance }
func (*DeleteInstance) MessageType() Type      { return TypeDeleteInstance }
func (*ReparentInstance) MessageType() Type    { return TypeReparentInstance }
func (*CloneInstance) MessageType() Type       { return TypeCloneInstance }
func (*DragStartInstance) MessageType() Type   { return TypeDragStartInstance }
func (*DragInstance) MessageType() Type        { return TypeDragInstance }
func (*DragEndInstance) MessageType() Type     { return TypeDragEndInstance }
func (*SelectInstance) MessageType() Type      { return TypeSelectInstance }
func (*UnselectInstance) MessageType() Type    { return TypeUnselectInstance }
func (*ClickCanvas) MessageType() Type         { return TypeClickCanvas }
func (*HoverInstance) MessageType() Type       { return TypeHoverInstance }
func (*SetInstanceProps) MessageType() Type    { return TypeSetInstanceProps }
func (*SetInstanceChildren) MessageType() Type { return TypeSetInstanceChildren }
func (*TextEditingInstance) MessageType() Type { return TypeTextEditingInstance }
func (*ScrollState) MessageType() Type         { return TypeScrollState }
func (*PreviewMode) MessageType() Type         { return TypePreviewMode }
func (*TreeChanged) MessageType() Type         { return TypeTreeChanged }
func (*SyncRequest) MessageType() Type         { return TypeSyncRequest }

func (*InsertInstance) isPayload()      {}
func (*DeleteInstance) isPayload()      {}
func (*ReparentInstance) isPayload()    {}
func (*CloneInstance) isPayload()       {}
func (*DragStartInstance) isPayload()   {}
func (*DragInstance) isPayload()        {}
func (*DragEndInstance) isPayload()     {}
func (*SelectInstance) isPayload()      {}
func (*UnselectInstance) isPayload()    {}
func (*ClickCanvas) isPayload()         {}
func (*HoverInstance) isPayload()       {}
func (*SetInstanceProps) isPayload()    {}
func (*SetInstanceChildren) isPayload() {}
func (*TextEditingInstance) isPayload() {}
func (*ScrollState) isPayload()         {}
func (*PreviewMode) isPayload()         {}
func (*TreeChanged) isPayload()         {}
func (*SyncRequest) isPayload()         {}

// Message is one tagged bus message.
// Origin identifies the process that first published it; it is empty for
// messages published locally.
type Message struct {
	Type    Type
	Payload Payload
	Origin  string
}

// New wraps a payload in a message of the matching type.
func New(p Payload) Message {
	return Message{Type: p.MessageType(), Payload: p}
}
