package pointer

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

type session struct {
	key     Key
	target  string
	last    domain.Point
	didMove bool
	// primary is fixed at press time; a session that starts while another
	// is active stays secondary for its whole life.
	primary bool
}

// Normalizer owns the pointer sessions and dispatches gestures to handlers.
// Handlers run synchronously on the caller's goroutine, after the normalizer
// has released its lock, so they may call back into it.
type Normalizer struct {
	mu       sync.Mutex
	sessions map[Key]*session
	handlers map[int]Handler
	nextID   int
	logger   *slog.Logger
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithHandler registers a handler at construction time.
func WithHandler(h Handler) Option {
	return func(n *Normalizer) {
		n.addHandler(h)
	}
}

// WithLogger configures a logger for ignored input diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// New creates a normalizer with no active sessions.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		sessions: make(map[Key]*session),
		handlers: make(map[int]Handler),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) addHandler(h Handler) int {
	n.nextID++
	n.handlers[n.nextID] = h
	return n.nextID
}

// AddHandler registers h and returns a function that removes it.
func (n *Normalizer) AddHandler(h Handler) (remove func()) {
	n.mu.Lock()
	id := n.addHandler(h)
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.handlers, id)
		n.mu.Unlock()
	}
}

// Handle dispatches any raw input event.
func (n *Normalizer) Handle(in Input) {
	switch e := in.(type) {
	case MouseEvent:
		n.HandleMouse(e)
	case TouchEvent:
		n.HandleTouch(e)
	case PointerEvent:
		n.HandlePointer(e)
	case KeyEvent:
		n.HandleKey(e)
	}
}

// HandleMouse processes a mouse sample. Only the main button starts a session.
func (n *Normalizer) HandleMouse(e MouseEvent) {
	key := Key{Type: Mouse}
	switch e.Phase {
	case PhaseDown:
		if e.Button != 0 {
			return
		}
		n.press(key, e.Target, e.Page)
	case PhaseMove:
		n.motion(key, e.Page, e.Modifiers)
	case PhaseUp:
		if e.Button != 0 {
			return
		}
		n.release(key, e.Page, e.Modifiers, false)
	case PhaseCancel:
		n.release(key, e.Page, e.Modifiers, true)
	}
}

// HandleTouch processes a touch sample. A touch session starts from the first
// changed touch, and only while no other touch session is active.
func (n *Normalizer) HandleTouch(e TouchEvent) {
	if e.Phase == PhaseDown {
		if len(e.Changed) == 0 || n.hasActive(Touch) {
			return
		}
		t := e.Changed[0]
		n.press(Key{Type: Touch, ID: t.ID}, e.Target, t.Page)
		return
	}
	for _, t := range e.Changed {
		key := Key{Type: Touch, ID: t.ID}
		switch e.Phase {
		case PhaseMove:
			n.motion(key, t.Page, e.Modifiers)
		case PhaseUp:
			n.release(key, t.Page, e.Modifiers, false)
		case PhaseCancel:
			n.release(key, t.Page, e.Modifiers, true)
		}
	}
}

// HandlePointer processes a unified pointer sample. Only the main button of a
// primary pointer starts a session.
func (n *Normalizer) HandlePointer(e PointerEvent) {
	typ := e.PointerType
	if typ == "" {
		typ = Mouse
	}
	key := Key{Type: typ, ID: e.PointerID}
	switch e.Phase {
	case PhaseDown:
		if e.Button != 0 || !e.IsPrimary {
			return
		}
		n.press(key, e.Target, e.Page)
	case PhaseMove:
		n.motion(key, e.Page, e.Modifiers)
	case PhaseUp:
		n.release(key, e.Page, e.Modifiers, false)
	case PhaseCancel:
		n.release(key, e.Page, e.Modifiers, true)
	}
}

// HandleKey processes a key press and reports whether it was consumed.
// Arrow keys emit a complete one-unit gesture; Escape cancels every session.
func (n *Normalizer) HandleKey(e KeyEvent) bool {
	if e.Key == "Escape" || e.Key == "Esc" {
		n.CancelAll()
		return true
	}
	delta, ok := arrowDelta(e.Key)
	if !ok {
		return false
	}

	key := Key{Type: Keyboard}
	n.press(key, e.Target, domain.Point{})
	n.motion(key, delta, e.Modifiers)
	n.release(key, delta, e.Modifiers, false)
	return true
}

func arrowDelta(key string) (domain.Point, bool) {
	switch key {
	case "Left", "ArrowLeft":
		return domain.Point{X: -1}, true
	case "Right", "ArrowRight":
		return domain.Point{X: 1}, true
	case "Up", "ArrowUp":
		return domain.Point{Y: -1}, true
	case "Down", "ArrowDown":
		return domain.Point{Y: 1}, true
	}
	return domain.Point{}, false
}

// Cancel aborts the session for key, if any.
func (n *Normalizer) Cancel(key Key) {
	n.mu.Lock()
	var last domain.Point
	s, ok := n.sessions[key]
	if ok {
		last = s.last
	}
	n.mu.Unlock()
	if ok {
		n.release(key, last, 0, true)
	}
}

// CancelAll aborts every active session.
func (n *Normalizer) CancelAll() {
	for _, key := range n.Active() {
		n.Cancel(key)
	}
}

// Active returns the keys of active sessions in a stable order.
func (n *Normalizer) Active() []Key {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := make([]Key, 0, len(n.sessions))
	for k := range n.sessions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}

// State returns the state of the session for key.
func (n *Normalizer) State(key Key) State {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sessions[key]; ok {
		return Active
	}
	return Idle
}

func (n *Normalizer) hasActive(typ Type) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.sessions {
		if k.Type == typ {
			return true
		}
	}
	return false
}

func (n *Normalizer) press(key Key, target string, page domain.Point) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, busy := n.sessions[key]; busy {
		n.logger.Debug("pointer press ignored, session active", "type", key.Type, "pointer_id", key.ID)
		return
	}
	n.sessions[key] = &session{
		key:     key,
		target:  target,
		last:    page,
		primary: len(n.sessions) == 0,
	}
}

func (n *Normalizer) motion(key Key, page domain.Point, mods Modifiers) {
	n.mu.Lock()
	s, ok := n.sessions[key]
	if !ok {
		n.mu.Unlock()
		return
	}
	delta := page.Sub(s.last)
	if delta.X == 0 && delta.Y == 0 {
		n.mu.Unlock()
		return
	}
	s.last = page
	first := !s.didMove
	s.didMove = true
	handlers := n.snapshotHandlers()
	n.mu.Unlock()

	for _, h := range handlers {
		if first {
			h.OnMoveStart(MoveStart{Key: key, Target: s.target, Page: page, Modifiers: mods, Primary: s.primary})
		}
		h.OnMove(Move{Key: key, Delta: delta, Page: page, Modifiers: mods, Primary: s.primary})
	}
}

func (n *Normalizer) release(key Key, page domain.Point, mods Modifiers, canceled bool) {
	n.mu.Lock()
	s, ok := n.sessions[key]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.sessions, key)
	if !s.didMove {
		n.mu.Unlock()
		return
	}
	handlers := n.snapshotHandlers()
	n.mu.Unlock()

	for _, h := range handlers {
		h.OnMoveEnd(MoveEnd{Key: key, Page: page, Modifiers: mods, Canceled: canceled, Primary: s.primary})
	}
}

func (n *Normalizer) snapshotHandlers() []Handler {
	ids := make([]int, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Handler, len(ids))
	for i, id := range ids {
		out[i] = n.handlers[id]
	}
	return out
}
