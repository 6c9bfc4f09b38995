package stats

import "errors"

// Sentinel kinds for statistics errors.
var (
	// ErrNoStats reports that a subject has no linked statistics
	// record. Callers inside the write scope never see this; it marks
	// a direct read that skipped EnsureCreated.
	ErrNoStats = errors.New("subject has no statistics record")

	// ErrUnknownSubject reports a subject type the recompute routine
	// has no rules for.
	ErrUnknownSubject = errors.New("unknown statistics subject")
)
