// Package notify defines the notification sink boundary. Delivery is
// fire-and-forget from the core's point of view; no acknowledgment is
// required.
package notify

import (
	"context"
	"sync"

	"github.com/playcore/tally/internal/domain/model"
	"github.com/playcore/tally/pkg/logger"
)

// Sink delivers a notification to a player.
type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LogSink writes deliveries to the log. It is the default sink when no
// real delivery transport is wired in.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a sink that logs every delivery.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.Get().Named("notify")}
}

// Notify logs the notification.
func (s *LogSink) Notify(ctx context.Context, n model.Notification) error {
	s.log.Info(ctx, "notification",
		logger.String("recipient", n.RecipientID.String()),
		logger.String("title", n.Title),
		logger.String("text", n.Text),
		logger.String("icon", n.Icon),
	)
	return nil
}

// MemorySink collects deliveries in memory for tests.
type MemorySink struct {
	mu   sync.Mutex
	sent []model.Notification
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Notify records the notification.
func (s *MemorySink) Notify(ctx context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (s *MemorySink) Sent() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}
