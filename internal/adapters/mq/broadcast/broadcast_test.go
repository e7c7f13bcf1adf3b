package broadcast_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/standings/internal/adapters/mq/broadcast"
	"github.com/okian/standings/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func event(competition string) model.Event {
	return model.NewEvent(model.Record{
		Competition: competition,
		Entries:     []model.Entry{{Rank: 1, Team: "alpha", Score: 1}},
		LastUpdated: time.Now(),
	})
}

func recv(ch <-chan model.Event) (model.Event, bool) {
	select {
	case e, ok := <-ch:
		return e, ok
	case <-time.After(time.Second):
		return model.Event{}, false
	}
}

func TestHub(t *testing.T) {
	Convey("Given a hub with one-slot buffers", t, func() {
		hub := broadcast.NewHub(broadcast.WithSubscriberBuffer(1))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fast, err := hub.Subscribe(ctx)
		So(err, ShouldBeNil)
		slow, err := hub.Subscribe(ctx)
		So(err, ShouldBeNil)
		So(hub.Count(), ShouldEqual, 2)
		So(fast.ID, ShouldNotEqual, slow.ID)

		Convey("When a subscriber never reads", func() {
			first := event("a")
			hub.Deliver(ctx, first)
			got, ok := recv(fast.C)
			So(ok, ShouldBeTrue)
			So(got.ID, ShouldEqual, first.ID)

			done := make(chan struct{})
			go func() {
				hub.Deliver(ctx, event("b"))
				close(done)
			}()

			Convey("Then delivery does not block and the others still receive", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					So("Deliver blocked", ShouldBeEmpty)
				}
				got, ok := recv(fast.C)
				So(ok, ShouldBeTrue)
				So(got.Competition, ShouldEqual, "b")

				// The slow subscriber kept only the event that fit.
				got, ok = recv(slow.C)
				So(ok, ShouldBeTrue)
				So(got.Competition, ShouldEqual, "a")
			})
		})

		Convey("When a subscriber's context ends", func() {
			subCtx, subCancel := context.WithCancel(ctx)
			late, err := hub.Subscribe(subCtx)
			So(err, ShouldBeNil)
			subCancel()

			Convey("Then its channel is closed and it is detached", func() {
				_, ok := recv(late.C)
				So(ok, ShouldBeFalse)
				So(hub.Count(), ShouldEqual, 2)
			})
		})

		Convey("When the hub is closed", func() {
			hub.Close()

			Convey("Then subscribers are released and new ones rejected", func() {
				_, ok := recv(fast.C)
				So(ok, ShouldBeFalse)
				So(hub.Count(), ShouldEqual, 0)
				_, err := hub.Subscribe(ctx)
				So(errors.Is(err, broadcast.ErrHubClosed), ShouldBeTrue)
			})
		})
	})
}

func TestBroadcaster(t *testing.T) {
	Convey("Given a started broadcaster", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		b := broadcast.New(broadcast.WithQueueSize(8), broadcast.WithBuffer(8))
		b.Start(ctx)
		defer func() { _ = b.Shutdown(context.Background()) }()

		sub, err := b.Subscribe(ctx)
		So(err, ShouldBeNil)
		So(b.Subscribers(), ShouldEqual, 1)

		Convey("When events are published", func() {
			e1, e2 := event("titanic"), event("titanic")
			So(b.Publish(ctx, e1), ShouldBeTrue)
			So(b.Publish(ctx, e2), ShouldBeTrue)

			Convey("Then the subscriber receives each exactly once, in order", func() {
				got, ok := recv(sub.C)
				So(ok, ShouldBeTrue)
				So(got.ID, ShouldEqual, e1.ID)
				got, ok = recv(sub.C)
				So(ok, ShouldBeTrue)
				So(got.ID, ShouldEqual, e2.ID)
				So(got.Entries, ShouldResemble, e2.Entries)

				select {
				case extra := <-sub.C:
					So(extra.ID.String(), ShouldBeEmpty)
				case <-time.After(50 * time.Millisecond):
				}
			})
		})

		Convey("When a subscriber attaches after an event", func() {
			So(b.Publish(ctx, event("before")), ShouldBeTrue)
			_, ok := recv(sub.C)
			So(ok, ShouldBeTrue)

			late, err := b.Subscribe(ctx)
			So(err, ShouldBeNil)

			Convey("Then it gets no replay", func() {
				select {
				case e := <-late.C:
					So(e.Competition, ShouldBeEmpty)
				case <-time.After(50 * time.Millisecond):
				}
			})
		})
	})

	Convey("Given a broadcaster whose dispatchers never started", t, func() {
		b := broadcast.New(broadcast.WithQueueSize(1))
		ctx := context.Background()

		Convey("Then publishing beyond the queue drops instead of blocking", func() {
			So(b.Publish(ctx, event("a")), ShouldBeTrue)
			So(b.Publish(ctx, event("b")), ShouldBeFalse)
			So(b.Pending(ctx), ShouldEqual, 1)
		})
	})
}

func TestHub_CloseReleasesSubscriptionWatchers(t *testing.T) {
	Convey("Given subscribers whose contexts never end", t, func() {
		hub := broadcast.NewHub()
		before := runtime.NumGoroutine()

		const subscribers = 50
		for range subscribers {
			_, err := hub.Subscribe(context.Background())
			So(err, ShouldBeNil)
		}
		So(hub.Count(), ShouldEqual, subscribers)

		Convey("When the hub is closed", func() {
			hub.Close()

			Convey("Then their watcher goroutines exit", func() {
				deadline := time.Now().Add(2 * time.Second)
				for runtime.NumGoroutine() >= before+subscribers/2 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(runtime.NumGoroutine(), ShouldBeLessThan, before+subscribers/2)
			})
		})
	})
}
