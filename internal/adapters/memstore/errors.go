package memstore

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound      = errors.New("row not found")
	ErrDuplicateID   = errors.New("duplicate row id")
	ErrAlreadyLinked = errors.New("subject already has a linked statistics record")
)
