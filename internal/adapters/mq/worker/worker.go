// Package worker provides the dispatcher pool draining the notification
// queue into the sink.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/playcore/tally/internal/adapters/notify"
	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/logger"
	"github.com/playcore/tally/pkg/metrics"
)

const (
	dispatcherShutdownTimeout = 5 * time.Second
)

// Queue defines how dispatchers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Notification
}

// Dispatcher drains the queue into the sink until stopped.
type Dispatcher struct {
	queue Queue
	sink  notify.Sink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(queue Queue, sink notify.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    queue,
		sink:     sink,
		name:     "dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.Get().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.name != "dispatcher" {
		d.log = d.log.Named(d.name)
	}
	return d
}

// Run starts the dispatch loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	items := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case n, ok := <-items:
			if !ok {
				return
			}
			if err := d.sink.Notify(ctx, n); err != nil {
				// Fire-and-forget delivery: log and count, never retry.
				metrics.RecordNotifyDispatchError()
				d.log.Error(ctx, "notification delivery failed",
					logger.String("recipient", n.RecipientID.String()),
					logger.Error(err),
				)
				continue
			}
			metrics.RecordNotifyDispatched()
		}
	}
}

// Shutdown stops the dispatcher, waiting for the loop to exit.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	close(d.shutdown)
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.log.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple dispatchers.
type Pool struct {
	dispatchers []*Dispatcher
	log         logger.Logger
}

// NewPool creates a pool of dispatchers over one queue and sink.
func NewPool(count int, queue Queue, sink notify.Sink) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	pool := &Pool{
		dispatchers: make([]*Dispatcher, count),
		log:         logger.Get().Named("dispatcher-pool"),
	}
	for i := 0; i < count; i++ {
		pool.dispatchers[i] = NewDispatcher(queue, sink, WithName("dispatcher-"+strconv.Itoa(i)))
	}
	return pool
}

// Start starts every dispatcher in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, d := range p.dispatchers {
		go d.Run(ctx)
	}
}

// Stop stops every dispatcher, bounded by a per-dispatcher timeout.
func (p *Pool) Stop() {
	for _, d := range p.dispatchers {
		select {
		case <-d.shutdown:
			// already signalled
		default:
			close(d.shutdown)
		}
	}
	for _, d := range p.dispatchers {
		select {
		case <-d.done:
		case <-time.After(dispatcherShutdownTimeout):
		}
	}
}
