package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// Subscription delivers the changes matching its filter on C until Unsubscribe is called
type Subscription struct {
	C <-chan Change

	id     uint64
	ch     chan Change
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Unsubscribe detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Hub fans changes out to in-process subscribers
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

// NewHub creates a Hub whose subscribers buffer up to buffer changes each
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer}
}

// Subscribe registers a new subscription for f
func (h *Hub) Subscribe(f Filter) *Subscription {
	ch := make(chan Change, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	s := &Subscription{C: ch, id: h.nextID, ch: ch, filter: f, hub: h}
	h.subs[s.id] = s
	return s
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Publish delivers c to every matching subscriber. A subscriber whose buffer is
// full misses the change; clients re-list on the next one they receive.
func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Matches(c) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			slog.Warn("realtime subscriber lagging, change dropped",
				"subscription", s.id, "table", c.Table, "event", c.Event)
		}
	}
	return nil
}

// Len is the number of live subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
