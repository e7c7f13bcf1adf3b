package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/standings/internal/domain/model"
)

func event(competition string) model.Event {
	return model.NewEvent(model.Record{Competition: competition, LastUpdated: time.Now()})
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	e := event("titanic")
	if err := q.Enqueue(ctx, e); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != e.ID || got.Competition != "titanic" {
		t.Errorf("expected %v, got %v", e.ID, got.ID)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := range 2 {
		if err := q.Enqueue(ctx, event(fmt.Sprint(i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if err := q.Enqueue(ctx, event("overflow")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, event("titanic")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(16))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers = 8
	const perProducer = 50

	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)
	for range 4 {
		go func() {
			for range q.Dequeue(ctx) {
				consumed.Done()
			}
		}()
	}

	var produced sync.WaitGroup
	for p := range producers {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for j := range perProducer {
				e := event(fmt.Sprintf("c%d-%d", p, j))
				for q.Enqueue(ctx, e) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	produced.Wait()

	done := make(chan struct{})
	go func() { consumed.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers did not drain the queue")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, event("a")); err != nil {
		t.Fatal(err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, event("b")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Buffered events drain before the channel closes.
	ch := q.Dequeue(ctx)
	timeout := time.After(time.Second)
	var drained []string
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				if len(drained) != 1 || drained[0] != "a" {
					t.Errorf("expected to drain [a], got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, e.Competition)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}

func TestInMemoryQueue_AbandonedDequeueKeepsEvent(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())

	// Nobody reads out, so the reader goroutine ends up holding the event.
	_ = q.Dequeue(ctx)
	e := event("titanic")
	if err := q.Enqueue(context.Background(), e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitLen := func(want int) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for q.Len(context.Background()) != want {
			if time.Now().After(deadline) {
				t.Fatalf("expected length %d, got %d", want, q.Len(context.Background()))
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitLen(0)

	cancel()
	waitLen(1)

	select {
	case got := <-q.Dequeue(context.Background()):
		if got.ID != e.ID {
			t.Errorf("expected %v, got %v", e.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("event was lost")
	}
}
