package events

import (
	"sync"

	"limitlesswork/core/types"
)

// Hub fans committed events out to live subscribers such as websocket
// streams. Slow subscribers miss events rather than stall the ledger.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan *types.Event
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan *types.Event)}
}

// Subscribe registers a listener with the given channel capacity. The returned
// cancel function closes the channel and is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan *types.Event, buffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of live listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Emit implements the Emitter interface.
func (h *Hub) Emit(e Event) {
	evt := Render(e)
	if evt == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
