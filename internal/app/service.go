// Package service provides the core business service wiring the
// statistics engine, the ranking engines and the notification pipeline
// behind one facade.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcore/tally/internal/adapters/memstore"
	"github.com/playcore/tally/internal/adapters/mq/queue"
	"github.com/playcore/tally/internal/adapters/mq/worker"
	"github.com/playcore/tally/internal/adapters/notify"
	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/internal/domain/stats"
	"github.com/playcore/tally/pkg/logger"
)

// Default service configuration constants.
const (
	defaultWindowSize    = 3
	defaultQueueSize     = 10_000
	defaultSweepInterval = time.Minute
)

// Service implements the derived-data operations of the game service.
type Service struct {
	mu sync.RWMutex

	// Core components
	store memstore.Store
	stats *stats.Store
	queue queue.Queue
	sink  notify.Sink
	pool  *worker.Pool

	// Configuration
	dispatcherCount int
	queueSize       int
	windowSize      int
	grace           time.Duration
	sweepInterval   time.Duration
	now             func() time.Time

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets a custom storage backend.
func WithStore(store memstore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSink sets the notification sink.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithDispatcherCount sets the number of notification dispatchers.
func WithDispatcherCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.dispatcherCount = count
		}
	}
}

// WithQueueSize bounds the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWindowSize sets the width of the centered score window returned
// after a submission. Must be odd and positive.
func WithWindowSize(size int) Option {
	return func(s *Service) {
		if size > 0 && size%2 == 1 {
			s.windowSize = size
		}
	}
}

// WithGracePeriod sets the statistics dirty watermark grace period.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithSweepInterval sets how often the sweeper polls for stale records.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock sets the time source, used by tests to control watermarks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dispatcherCount: 4,
		queueSize:       defaultQueueSize,
		windowSize:      defaultWindowSize,
		sweepInterval:   defaultSweepInterval,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.log == nil {
		s.log = logger.Get()
	}
	if s.store == nil {
		s.store = memstore.New(memstore.WithClock(s.now))
	}
	if s.sink == nil {
		s.sink = notify.NewLogSink()
	}

	statsOpts := []stats.Option{stats.WithClock(s.now)}
	if s.grace > 0 {
		statsOpts = append(statsOpts, stats.WithGracePeriod(s.grace))
	}
	s.stats = stats.New(s.store, statsOpts...)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.dispatcherCount, s.queue, s.sink)
	s.pool.Start(ctx)

	go s.runSweeper(ctx)

	s.started = true
	s.log.Info(ctx, "derived-data service started",
		logger.Int("dispatchers", s.dispatcherCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("sweepInterval", s.sweepInterval),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.log.Info(ctx, "stopping derived-data service...")

	if q, ok := s.queue.(*queue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}

	select {
	case <-s.stopCh:
		// already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.log.Info(ctx, "derived-data service stopped")
}

// Stats returns the statistics engine. It is available after Start.
func (s *Service) Stats() *stats.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Statistics returns the statistics record of a subject, materializing
// it first when absent. A missing record is never surfaced to callers.
func (s *Service) Statistics(ctx context.Context, subjectID uuid.UUID) (model.StatsRecord, error) {
	subject, ok, err := s.store.Subject(ctx, subjectID)
	if err != nil {
		return model.StatsRecord{}, err
	}
	if !ok {
		return model.StatsRecord{}, ErrSubjectNotFound
	}
	if err := s.stats.RecalculateIfStale(ctx, subject); err != nil {
		return model.StatsRecord{}, err
	}
	return s.stats.Record(ctx, subject)
}

// notifyAsync enqueues a notification for asynchronous dispatch.
// Delivery is fire-and-forget; a full queue drops the notification.
func (s *Service) notifyAsync(ctx context.Context, n model.Notification) {
	if !s.queue.Enqueue(ctx, n) {
		s.log.Warn(ctx, "notification queue full; dropping",
			logger.String("recipient", n.RecipientID.String()),
			logger.String("title", n.Title),
		)
	}
}

// GetStats returns service counters for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":         s.started,
		"dispatcherCount": s.dispatcherCount,
		"queueSize":       s.queueSize,
		"windowSize":      s.windowSize,
	}
	if s.started {
		out["queueLength"] = s.queue.Len(context.Background())
	}
	return out
}
