package http

import (
	"log/slog"
	"sync"
)

// Event is one server-sent event.
type Event struct {
	Type string
	Data string
}

// StreamManager handles active SSE connections, keyed by document id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{}
	buffer      int
	logger      *slog.Logger
}

// NewStreamManager creates a stream manager whose clients buffer up to buffer events.
func NewStreamManager(buffer int, logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Event]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a client for id and returns a function that unregisters it.
func (sm *StreamManager) Subscribe(id string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, sm.buffer)
	if _, ok := sm.subscribers[id]; !ok {
		sm.subscribers[id] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[id][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[id]; ok {
			if _, mine := subs[ch]; !mine {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, id)
			}
		}
	}
}

// Count returns the number of clients of id.
func (sm *StreamManager) Count(id string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[id])
}

// Broadcast sends ev to every client of id. Slow clients miss it.
func (sm *StreamManager) Broadcast(id string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[id] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "document_id", id, "type", ev.Type)
		}
	}
}

// CloseAll disconnects every client.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, subs := range sm.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(sm.subscribers, id)
	}
}
