// Package queue defines the contract for enqueuing and consuming
// notifications awaiting dispatch.
//
// Implementations may use channels or more advanced structures; the
// in-memory bounded queue is the default.
package queue

import (
	"context"
	"sync"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/metrics"
)

// defaultCapacity bounds the in-memory queue.
const defaultCapacity = 10000

// Notification is the payload type flowing through the queue.
type Notification = model.Notification

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a notification to the queue.
	// Returns false if the queue is full and nothing was enqueued.
	Enqueue(ctx context.Context, n Notification) bool

	// Dequeue returns a channel receiving notifications as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Notification

	// Len returns the current number of queued notifications.
	Len(ctx context.Context) int

	// Close shuts the queue down; no further enqueues are accepted.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Notification
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Notification, q.capacity)

	metrics.UpdateNotifyQueueSize(0)
	return q
}

// Enqueue adds a notification to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotifyEnqueueFailure()
		return false
	}

	select {
	case q.items <- n:
		metrics.UpdateNotifyQueueSize(len(q.items))
		return true
	case <-ctx.Done():
		metrics.RecordNotifyEnqueueFailure()
		return false
	default:
		metrics.RecordNotifyEnqueueFailure()
		return false // queue is full
	}
}

// Dequeue returns a channel receiving notifications as they arrive.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for n := range q.items {
			select {
			case out <- n:
				metrics.UpdateNotifyQueueSize(len(q.items))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.items)
}

// Close shuts the queue down.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}
