package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/playcore/tally/internal/adapters/mq/queue"
	"github.com/playcore/tally/internal/adapters/mq/worker"
	"github.com/playcore/tally/internal/adapters/notify"
	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// failingSink fails a fixed number of deliveries, then succeeds.
type failingSink struct {
	failures int32
	inner    *notify.MemorySink
}

func (s *failingSink) Notify(ctx context.Context, n model.Notification) error {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return errors.New("delivery refused")
	}
	return s.inner.Notify(ctx, n)
}

func waitFor(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestDispatcher(t *testing.T) {
	Convey("Given a dispatcher over a queue and a sink", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := notify.NewMemorySink()

		Convey("When notifications are enqueued", func() {
			d := worker.NewDispatcher(q, sink, worker.WithName("test"))
			go d.Run(ctx)

			So(q.Enqueue(ctx, model.Notification{RecipientID: uuid.New(), Title: "hello"}), ShouldBeTrue)
			So(q.Enqueue(ctx, model.Notification{RecipientID: uuid.New(), Title: "world"}), ShouldBeTrue)

			Convey("Then every one reaches the sink", func() {
				So(waitFor(func() bool { return len(sink.Sent()) == 2 }), ShouldBeTrue)
			})

			So(d.Shutdown(context.Background()), ShouldBeNil)
		})

		Convey("When the sink fails for one delivery", func() {
			flaky := &failingSink{failures: 1, inner: sink}
			d := worker.NewDispatcher(q, flaky, worker.WithName("flaky"))
			go d.Run(ctx)

			So(q.Enqueue(ctx, model.Notification{RecipientID: uuid.New(), Title: "dropped"}), ShouldBeTrue)
			So(q.Enqueue(ctx, model.Notification{RecipientID: uuid.New(), Title: "delivered"}), ShouldBeTrue)

			Convey("Then the failure is swallowed and the loop keeps draining", func() {
				So(waitFor(func() bool { return len(sink.Sent()) == 1 }), ShouldBeTrue)
				So(sink.Sent()[0].Title, ShouldEqual, "delivered")
			})

			So(d.Shutdown(context.Background()), ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of dispatchers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		sink := notify.NewMemorySink()
		pool := worker.NewPool(3, q, sink)
		pool.Start(ctx)

		Convey("When many notifications are enqueued", func() {
			for i := 0; i < 20; i++ {
				So(q.Enqueue(ctx, model.Notification{RecipientID: uuid.New(), Title: "n"}), ShouldBeTrue)
			}

			Convey("Then the pool drains all of them", func() {
				So(waitFor(func() bool { return len(sink.Sent()) == 20 }), ShouldBeTrue)
			})

			pool.Stop()
		})

		Convey("When stopping an idle pool", func() {
			pool.Stop()

			Convey("Then stop returns without hanging", func() {
				So(true, ShouldBeTrue)
			})
		})
	})
}
