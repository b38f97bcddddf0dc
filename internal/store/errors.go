package store

import "errors"

var (
	// ErrNotFound indicates a missing or unauthorized resource lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the stored row changed since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)
