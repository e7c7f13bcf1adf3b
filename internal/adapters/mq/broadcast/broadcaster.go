package broadcast

import (
	"context"

	"github.com/okian/standings/internal/adapters/mq/queue"
	"github.com/okian/standings/internal/adapters/mq/worker"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Broadcaster decouples publishers from subscribers: Publish only
// enqueues, and a dispatcher pool moves events to the Hub.
type Broadcaster struct {
	queue *queue.InMemoryQueue
	pool  *worker.Pool
	hub   *Hub
	log   logger.Logger
}

// Option configures a Broadcaster.
type Option func(*settings)

type settings struct {
	queueSize int
	workers   int
	buffer    int
	log       logger.Logger
}

// WithQueueSize bounds the number of pending events.
func WithQueueSize(n int) Option { return func(s *settings) { s.queueSize = n } }

// WithWorkers sets the number of dispatchers. One keeps event order.
func WithWorkers(n int) Option { return func(s *settings) { s.workers = n } }

// WithBuffer sets each subscriber's channel depth.
func WithBuffer(n int) Option { return func(s *settings) { s.buffer = n } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// New wires a queue, a dispatcher pool and a hub together. Call Start
// before publishing.
func New(opts ...Option) *Broadcaster {
	s := settings{workers: 1, log: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}

	hub := NewHub(WithSubscriberBuffer(s.buffer))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	return &Broadcaster{
		queue: q,
		hub:   hub,
		pool:  worker.NewPool(s.workers, q, hub, worker.WithPoolLogger(s.log)),
		log:   s.log,
	}
}

// Start launches the dispatchers.
func (b *Broadcaster) Start(ctx context.Context) {
	b.pool.Start(ctx)
}

// Publish hands e to the dispatchers without waiting for delivery. It
// reports whether the event was accepted; a full queue drops it.
func (b *Broadcaster) Publish(ctx context.Context, e model.Event) bool { //nolint:gocritic // hugeParam: enqueued by value
	if err := b.queue.Enqueue(ctx, e); err != nil {
		b.log.Warn(ctx, "update event dropped",
			logger.String("competition", e.Competition),
			logger.String("event_id", e.ID.String()),
			logger.Error(err))
		return false
	}
	metrics.RecordBroadcastPublished()
	return true
}

// Subscribe attaches a listener until ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context) (Subscription, error) {
	return b.hub.Subscribe(ctx)
}

// Subscribers returns the number of attached listeners.
func (b *Broadcaster) Subscribers() int { return b.hub.Count() }

// Pending returns the number of queued, undelivered events.
func (b *Broadcaster) Pending(ctx context.Context) int { return b.queue.Len(ctx) }

// Shutdown stops the dispatchers and detaches all subscribers.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	err := b.pool.Shutdown(ctx)
	b.hub.Close()
	return err
}
