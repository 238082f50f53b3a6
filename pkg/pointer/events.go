package pointer

import "github.com/aretw0/arbor/pkg/domain"

// Type identifies the device behind a gesture.
type Type string

const (
	Mouse    Type = "mouse"
	Pen      Type = "pen"
	Touch    Type = "touch"
	Keyboard Type = "keyboard"
	Virtual  Type = "virtual"
)

// Modifiers is a bitmask of held keyboard modifiers.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has reports whether every bit of m is set.
func (mods Modifiers) Has(m Modifiers) bool {
	return mods&m == m
}

// Key identifies one pointer session.
type Key struct {
	Type Type
	ID   int
}

// Phase is the step of a raw input event.
type Phase int

const (
	PhaseDown Phase = iota
	PhaseMove
	PhaseUp
	// PhaseCancel covers pointer-cancel, lost capture and leaving the surface.
	PhaseCancel
)

// Input is one raw input event. The set is closed.
type Input interface {
	input()
}

// MouseEvent is a raw mouse sample.
type MouseEvent struct {
	Phase     Phase
	Button    int
	Page      domain.Point
	Target    string
	Modifiers Modifiers
}

// TouchPoint is one finger of a touch event.
type TouchPoint struct {
	ID   int
	Page domain.Point
}

// TouchEvent is a raw touch sample. Changed lists the touches this event is about.
type TouchEvent struct {
	Phase     Phase
	Changed   []TouchPoint
	Target    string
	Modifiers Modifiers
}

// PointerEvent is a raw unified pointer sample.
// An empty PointerType is treated as Mouse.
type PointerEvent struct {
	Phase       Phase
	PointerID   int
	PointerType Type
	IsPrimary   bool
	Button      int
	Page        domain.Point
	Target      string
	Modifiers   Modifiers
}

// KeyEvent is a key press.
type KeyEvent struct {
	Key       string
	Target    string
	Modifiers Modifiers
}

func (MouseEvent) input()   {}
func (TouchEvent) input()   {}
func (PointerEvent) input() {}
func (KeyEvent) input()     {}

// MoveStart opens a gesture. Page is the position of the first moving sample.
type MoveStart struct {
	Key       Key
	Target    string
	Page      domain.Point
	Modifiers Modifiers
	Primary   bool
}

// Move reports motion since the previous sample.
type Move struct {
	Key       Key
	Delta     domain.Point
	Page      domain.Point
	Modifiers Modifiers
	Primary   bool
}

// MoveEnd closes a gesture. Canceled is set when the gesture was aborted
// rather than released.
type MoveEnd struct {
	Key       Key
	Page      domain.Point
	Modifiers Modifiers
	Canceled  bool
	Primary   bool
}

// Handler receives normalized gestures.
type Handler interface {
	OnMoveStart(MoveStart)
	OnMove(Move)
	OnMoveEnd(MoveEnd)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	MoveStart func(MoveStart)
	Move      func(Move)
	MoveEnd   func(MoveEnd)
}

func (h HandlerFuncs) OnMoveStart(e MoveStart) {
	if h.MoveStart != nil {
		h.MoveStart(e)
	}
}

func (h HandlerFuncs) OnMove(e Move) {
	if h.Move != nil {
		h.Move(e)
	}
}

func (h HandlerFuncs) OnMoveEnd(e MoveEnd) {
	if h.MoveEnd != nil {
		h.MoveEnd(e)
	}
}
