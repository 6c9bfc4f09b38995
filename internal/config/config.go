// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StatsGraceSeconds is the watermark grace period: a record marked
	// dirty becomes eligible for recompute this many seconds later.
	StatsGraceSeconds int `koanf:"stats_grace_seconds"`

	// SweepIntervalSeconds sets how often the sweeper polls for stale
	// statistics records. Must be comfortably below the grace period
	// plus the acceptable staleness ceiling.
	SweepIntervalSeconds int `koanf:"sweep_interval_seconds"`

	// NotifyQueueSize bounds the in-memory notification queue.
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// DispatcherCount sets the number of notification dispatch workers.
	DispatcherCount int `koanf:"dispatcher_count"`

	// MaxPageSize caps the count parameter of paged queries.
	MaxPageSize int `koanf:"max_page_size"`

	// ScoreWindowSize is the width of the centered score window returned
	// after a submission. Must be odd and positive.
	ScoreWindowSize int `koanf:"score_window_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9090",
		StatsGraceSeconds:    300,
		SweepIntervalSeconds: 60,
		NotifyQueueSize:      10_000,
		DispatcherCount:      runtime.NumCPU(),
		MaxPageSize:          100,
		ScoreWindowSize:      3,
	}
}
