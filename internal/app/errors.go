package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrSubjectNotFound = errors.New("subject not found")
	ErrScoreNotFound   = errors.New("score not found")
	ErrNoPlayers       = errors.New("score must have at least one player")
)
