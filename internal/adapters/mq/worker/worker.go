// Package worker runs the dispatchers that move update events from the
// queue to subscribers.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

const poolShutdownTimeout = 5 * time.Second

// Event is what workers read off the queue.
type Event = model.Event

// Deliverer fans one event out to its listeners. Deliver must not block
// on any single listener.
type Deliverer interface {
	Deliver(ctx context.Context, e Event)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker dispatches queued events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	deliverer Deliverer
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	draining     chan struct{}
	drainOnce    sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, deliverer Deliverer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		deliverer: deliverer,
		name:      "worker",
		shutdown:  make(chan struct{}),
		draining:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop. The queue is read under a context that ends
// with Run, so no reader is left behind holding an event.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := w.queue.Dequeue(runCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-w.draining:
			w.drain(ctx, events)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.dispatch(ctx, event)
		}
	}
}

// drain dispatches until the queue's channel closes or the worker is
// told to stop outright.
func (w *InMemoryWorker) drain(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.dispatch(ctx, event)
		}
	}
}

func (w *InMemoryWorker) dispatch(ctx context.Context, event Event) { //nolint:gocritic // hugeParam: Event is received by value from the channel
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "panic while dispatching event",
				logger.String("event_id", event.ID.String()),
				logger.Any("panic", r))
		}
	}()

	w.logger.Debug(ctx, "dispatching event",
		logger.String("event_id", event.ID.String()),
		logger.String("competition", event.Competition),
		logger.Int("entries", len(event.Entries)))
	w.deliverer.Deliver(ctx, event)
}

// Shutdown implements Worker.Shutdown. Events still queued stay in the
// queue for other consumers.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	return w.wait(ctx)
}

// Drain lets the worker deliver everything left in a closed queue before
// it exits. If ctx ends first the worker is stopped outright.
func (w *InMemoryWorker) Drain(ctx context.Context) error {
	w.drainOnce.Do(func() { close(w.draining) })
	err := w.wait(ctx)
	if err != nil {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
	}
	return err
}

func (w *InMemoryWorker) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple workers reading from one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount dispatchers (at least one).
func NewPool(workerCount int, queue Queue, deliverer Deliverer, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, deliverer,
			WithName("dispatcher-"+strconv.Itoa(i)),
			WithLogger(p.logger))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "dispatcher pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, if it can be closed, and waits for every
// worker to exit. Workers deliver what was left in a closed queue first.
func (p *Pool) Shutdown(ctx context.Context) error {
	closed := false
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		} else {
			closed = true
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		stop := w.Shutdown
		if closed {
			stop = w.Drain
		}
		if err := stop(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
