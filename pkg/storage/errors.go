package storage

import "errors"

// Common errors returned by storage implementations.
var (
	// ErrUnavailable is returned when a durable backend cannot be reached at
	// startup. Callers fall back to the in-memory store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt storage entry")
)
