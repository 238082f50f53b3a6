package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMutation EventType = "mutation"
	EventRejected EventType = "mutation_rejected"
	EventDrag     EventType = "drag"
)

// MutationKind names a tree operation.
type MutationKind string

const (
	MutationInsert      MutationKind = "insert"
	MutationDelete      MutationKind = "delete"
	MutationReparent    MutationKind = "reparent"
	MutationSetChildren MutationKind = "set_children"
	MutationSetProps    MutationKind = "set_props"
	MutationPopulate    MutationKind = "populate"
)

// DragPhase names a step of a drag gesture.
type DragPhase string

const (
	DragStart  DragPhase = "start"
	DragOver   DragPhase = "over"
	DragDrop   DragPhase = "drop"
	DragCancel DragPhase = "cancel"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id,omitempty"`
}

// MutationEvent reports an applied or rejected tree mutation.
type MutationEvent struct {
	EventBase
	Kind       MutationKind `json:"kind"`
	InstanceID string       `json:"instance_id,omitempty"`
	ParentID   string       `json:"parent_id,omitempty"`
	Index      int          `json:"index"`
	Version    uint64       `json:"version"`
	Err        error        `json:"-"`
}

// DragEvent reports a drag gesture step.
type DragEvent struct {
	EventBase
	Phase      DragPhase   `json:"phase"`
	InstanceID string      `json:"instance_id,omitempty"`
	Component  string      `json:"component,omitempty"`
	Target     *DropTarget `json:"target,omitempty"`
}

// LifecycleHooks defines callbacks for designer observability.
type LifecycleHooks struct {
	OnMutation         func(context.Context, *MutationEvent)
	OnMutationRejected func(context.Context, *MutationEvent)
	OnDrag             func(context.Context, *DragEvent)
}
