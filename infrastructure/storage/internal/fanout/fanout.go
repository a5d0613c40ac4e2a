// Package fanout delivers freshly appended event records to live
// per-session subscribers. Delivery never blocks an append: a subscriber
// whose buffer is full misses records and catches up with LoadFrom.
package fanout

import (
	"context"
	"slices"
	"sync"

	"github.com/felixgeelhaar/agentsim/domain/event"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Hub tracks subscriber channels by session.
type Hub struct {
	mu     sync.Mutex
	subs   map[string][]chan event.Record
	buffer int
	closed bool
}

// New returns a hub whose channels hold buffer records. A non-positive
// buffer selects DefaultBuffer.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[string][]chan event.Record), buffer: buffer}
}

// Subscribe registers a channel for sessionID. The channel is closed when
// ctx ends or the hub is closed.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) (<-chan event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, event.ErrInvalidSessionID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, event.ErrSubscriptionClosed
	}

	ch := make(chan event.Record, h.buffer)
	h.subs[sessionID] = append(h.subs[sessionID], ch)
	context.AfterFunc(ctx, func() { h.drop(sessionID, ch) })
	return ch, nil
}

func (h *Hub) drop(sessionID string, ch chan event.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sessionID]
	i := slices.Index(subs, ch)
	if i < 0 {
		return
	}
	close(ch)
	if subs = slices.Delete(subs, i, i+1); len(subs) == 0 {
		delete(h.subs, sessionID)
	} else {
		h.subs[sessionID] = subs
	}
}

// Publish offers each record to the subscribers of its session.
func (h *Hub) Publish(records ...event.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range records {
		for _, ch := range h.subs[r.SessionID] {
			select {
			case ch <- r:
			default:
			}
		}
	}
}

// Subscribers returns the number of live channels for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close closes every channel. Later subscriptions fail with
// event.ErrSubscriptionClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	clear(h.subs)
	h.closed = true
}
