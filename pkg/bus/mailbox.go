package bus

import (
	"sync"
)

// mailbox is one subscriber's unbounded FIFO queue and its delivery goroutine.
type mailbox struct {
	bus *Bus
	id  int
	typ Type // empty means every type
	fn  Handler

	mu    sync.Mutex
	queue []Message
	wake  chan struct{}
	quit  chan struct{}
	once  sync.Once
}

func newMailbox(b *Bus, id int, t Type, fn Handler) *mailbox {
	return &mailbox{
		bus:  b,
		id:   id,
		typ:  t,
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// push appends m and returns the backlog depth.
func (mb *mailbox) push(m Message) int {
	mb.mu.Lock()
	mb.queue = append(mb.queue, m)
	depth := len(mb.queue)
	mb.mu.Unlock()

	select {
	case mb.wake <- struct{}{}:
	default:
	}
	return depth
}

func (mb *mailbox) run() {
	for {
		select {
		case <-mb.quit:
			mb.discard()
			return
		default:
		}

		mb.mu.Lock()
		if len(mb.queue) == 0 {
			mb.mu.Unlock()
			select {
			case <-mb.wake:
				continue
			case <-mb.quit:
				mb.discard()
				return
			}
		}
		m := mb.queue[0]
		mb.queue[0] = Message{}
		mb.queue = mb.queue[1:]
		mb.mu.Unlock()

		mb.deliver(m)
		mb.bus.done(1)
	}
}

func (mb *mailbox) deliver(m Message) {
	defer func() {
		if r := recover(); r != nil {
			mb.bus.logger.Error("bus handler panicked", "type", m.Type, "panic", r)
		}
	}()
	mb.fn(m)
}

func (mb *mailbox) discard() {
	mb.mu.Lock()
	n := len(mb.queue)
	mb.queue = nil
	mb.mu.Unlock()
	mb.bus.done(n)
}

func (mb *mailbox) stop() {
	mb.once.Do(func() { close(mb.quit) })
}

// Unsubscribe removes the subscription. Messages still queued are discarded.
func (mb *mailbox) Unsubscribe() {
	mb.bus.remove(mb.id)
}
