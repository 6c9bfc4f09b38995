package config

import "errors"

// Sentinel kinds for configuration errors.
var (
	ErrEmptyAddr   = errors.New("addr must not be empty")
	ErrWindowSize  = errors.New("score_window_size must be odd and positive")
	ErrGracePeriod = errors.New("stats_grace_seconds must be positive")
)
