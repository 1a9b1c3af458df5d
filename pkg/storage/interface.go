// Package storage defines the key/value persistence contract the TTL cache is
// built on. Backends (in-memory, Redis, PostgreSQL) live in sub-packages and
// are interchangeable: eviction policy lives in the cache, not in the store.
//
//go:generate mockgen -package mockstorage -source=interface.go -destination=mock/mockstorage.go *
package storage

import (
	"context"
	"time"
)

// Entry is a stored cache value with its bookkeeping timestamps.
type Entry struct {
	// Value is the encoded payload.
	Value []byte
	// CreatedAt is when the value was written. Age is measured from it.
	CreatedAt time.Time
	// AccessedAt is refreshed on every hit and drives least-recently-used eviction.
	AccessedAt time.Time
}

// Meta describes a stored entry without its payload.
type Meta struct {
	Key        string
	CreatedAt  time.Time
	AccessedAt time.Time
}

// Store is a namespaced key/value store. Implementations must be safe for
// concurrent use. Operations on a single key are not atomic across processes.
type Store interface {
	// Load returns the entry stored under key. The boolean is false when the
	// key does not exist.
	Load(ctx context.Context, key string) (Entry, bool, error)
	// Save creates or replaces the entry stored under key.
	Save(ctx context.Context, key string, entry Entry) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// List returns metadata for every entry in the namespace, in no particular order.
	List(ctx context.Context) ([]Meta, error)
}
