// Package queue buffers update events between the pipeline and the
// broadcast dispatchers.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Event is the payload flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event without blocking. It returns ErrFull or
	// ErrClosed when the event was not accepted.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns a channel that will receive events as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close stops accepting events; already queued events are still drained.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event is passed by value into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordBroadcastDropped("queue_closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordBroadcastDropped("context_cancelled")
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.events <- e:
		metrics.UpdateQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordBroadcastDropped("queue_full")
		return ErrFull
	}
}

// Dequeue implements Queue.Dequeue. Several consumers may call it; each
// event goes to exactly one of them. An event already taken off the queue
// when ctx ends is put back rather than lost.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.events:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.events))
				select {
				case out <- event:
				case <-ctx.Done():
					q.requeue(event)
					return
				}
			}
		}
	}()
	return out
}

// requeue returns an event taken off the queue by a consumer that went
// away before receiving it. It lands at the back of the queue.
func (q *InMemoryQueue) requeue(e Event) { //nolint:gocritic // hugeParam: Event is passed by value into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.closed {
		select {
		case q.events <- e:
			metrics.UpdateQueueSize(len(q.events))
			return
		default:
		}
	}
	metrics.RecordBroadcastDropped("consumer_gone")
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.events)
}

// Close implements Queue.Close. Calling it more than once is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
