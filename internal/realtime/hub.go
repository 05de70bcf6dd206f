package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicOrders = "orders"
	TopicCart   = "cart"
)

const defaultBuffer = 16

// Event is a change signal. Clients reload the affected resource; the payload
// is informational.
type Event struct {
	Topic  string          `json:"topic"`
	Type   string          `json:"type"`
	UserID uuid.UUID       `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Filter selects events for one subscriber. A nil UserID receives events for
// every user; events without a user reach every subscriber of the topic.
type Filter struct {
	Topic  string
	UserID *uuid.UUID
}

func (f Filter) matches(e Event) bool {
	if f.Topic != "" && f.Topic != e.Topic {
		return false
	}
	return f.UserID == nil || e.UserID == uuid.Nil || *f.UserID == e.UserID
}

// Subscription receives matching events on C until it is removed.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	id     uint64
	filter Filter
}

// Hub fans events out to subscribers. Each subscriber has a bounded buffer
// and misses events while it is full.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	dropped atomic.Uint64
	closed  bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: map[uint64]*Subscription{}, buffer: buffer}
}

// Subscribe registers a subscriber. It returns nil after Close.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.nextID++
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, id: h.nextID, filter: filter}
	h.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Publish delivers e to every matching subscriber without blocking and
// returns how many received it.
func (h *Hub) Publish(e Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, sub := range h.subs {
		if !sub.filter.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Dropped counts events lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
