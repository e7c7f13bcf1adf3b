// Package broadcast delivers update events to live subscribers.
//
// Delivery is at-most-once and best-effort: there is no replay, and a
// subscriber whose buffer is full misses the event rather than slowing
// anyone else down.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

const defaultSubscriberBuffer = 16

// Subscription is one attached listener.
type Subscription struct {
	ID uuid.UUID
	// C yields events until the subscription ends, then is closed.
	C <-chan model.Event
}

// Hub tracks subscribers and fans events out to them.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[uuid.UUID]chan model.Event
	closed bool
	done   chan struct{} // closed by Close
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSubscriberBuffer sets the per-subscriber channel depth.
func WithSubscriberBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		buffer: defaultSubscriberBuffer,
		subs:   make(map[uuid.UUID]chan model.Event),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe attaches a listener that stays attached until ctx is done or
// the hub is closed.
func (h *Hub) Subscribe(ctx context.Context) (Subscription, error) {
	ch := make(chan model.Event, h.buffer)
	id := uuid.New()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Subscription{}, ErrHubClosed
	}
	h.subs[id] = ch
	n := len(h.subs)
	h.mu.Unlock()
	metrics.UpdateSubscribers(n)

	go func() {
		select {
		case <-ctx.Done():
			h.unsubscribe(id)
		case <-h.done:
		}
	}()

	return Subscription{ID: id, C: ch}, nil
}

func (h *Hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		metrics.UpdateSubscribers(n)
	}
}

// Deliver sends e to every current subscriber without blocking.
func (h *Hub) Deliver(_ context.Context, e model.Event) { //nolint:gocritic // hugeParam: event copied per subscriber anyway
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
			metrics.RecordBroadcastDelivered()
		default:
			metrics.RecordBroadcastDropped("subscriber_full")
		}
	}
}

// Count returns the number of attached subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	metrics.UpdateSubscribers(0)
}
