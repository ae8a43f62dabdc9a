// Package realtime implements the change-event fan-out described in
// spec.md §4.I: WebSocket subscribers bound to named channels, each with a
// bounded per-connection buffer. A slow subscriber is dropped rather than
// allowed to block the broadcaster (teacher precedent: bounded worker
// channels feeding goroutines in infrastructure/accountpool, read before
// infrastructure/ was deleted, generalized here to WS connections).
package realtime

import (
	"sync"
	"time"
)

// Channel names named in spec.md §4.I.
const (
	ChannelTasks    = "tasks"
	ChannelAgents   = "agents"
	ChannelContext  = "context"
	ChannelSecurity = "security"
	ChannelRAG      = "rag"
)

// Event is one change notification broadcast to a channel's subscribers.
type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entity_id"`
	Changes  any       `json:"changes,omitempty"`
	Ts       time.Time `json:"ts"`
}

// Subscriber is a single bounded delivery queue bound to one channel.
type Subscriber struct {
	id      uint64
	channel string
	buf     chan Event
	closed  chan struct{}
	once    sync.Once
}

// Events returns the subscriber's delivery queue. The caller (the
// connection's write pump) should range over it until it is closed.
func (s *Subscriber) Events() <-chan Event { return s.buf }

// Close releases the subscriber and closes its Events channel; safe to call
// more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.buf)
	})
}

// Hub tracks subscribers per channel and broadcasts events to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]*Subscriber
	bufferSize  int
	nextID      uint64
}

// NewHub returns a Hub whose subscriber buffers hold bufferSize events
// before the subscriber is dropped for being too slow.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		subscribers: make(map[string]map[uint64]*Subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new Subscriber on channel.
func (h *Hub) Subscribe(channel string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscriber{
		id:      h.nextID,
		channel: channel,
		buf:     make(chan Event, h.bufferSize),
		closed:  make(chan struct{}),
	}
	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[uint64]*Subscriber)
	}
	h.subscribers[channel][sub.id] = sub
	return sub
}

// Unsubscribe removes sub from its channel and closes its queue.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subscribers[sub.channel]; subs != nil {
		delete(subs, sub.id)
	}
	sub.Close()
}

// Broadcast delivers event to every subscriber of channel. A subscriber
// whose buffer is full is dropped (connection considered dead) rather than
// blocking the broadcaster, per spec.md §4.I.
func (h *Hub) Broadcast(channel string, event Event) {
	var dropped []*Subscriber
	h.mu.RLock()
	for _, s := range h.subscribers[channel] {
		select {
		case s.buf <- event:
		default:
			dropped = append(dropped, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range dropped {
		h.Unsubscribe(s)
	}
}

// SubscriberCount returns the number of active subscribers on channel, used
// by the /health endpoint.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
