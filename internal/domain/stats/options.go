package stats

import (
	"time"

	"github.com/playcore/tally/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithGracePeriod sets the dirty watermark grace period.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithClock sets the time source, used by tests to control watermarks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}
