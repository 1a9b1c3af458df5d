// Package memory provides a process-local storage.Store.
package memory

import (
	"context"
	"qrshield/pkg/storage"
	"sync"
)

// Store keeps entries in a map guarded by a RWMutex. Values are copied on
// the way in and out so callers never share backing arrays with the store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]storage.Entry
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]storage.Entry)}
}

func clone(e storage.Entry) storage.Entry {
	e.Value = append([]byte(nil), e.Value...)

	return e
}

// Load implements storage.Store.
func (s *Store) Load(_ context.Context, key string) (storage.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return storage.Entry{}, false, nil
	}

	return clone(e), true, nil
}

// Save implements storage.Store.
func (s *Store) Save(_ context.Context, key string, entry storage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = clone(entry)

	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.entries, k)
	}

	return nil
}

// List implements storage.Store.
func (s *Store) List(_ context.Context) ([]storage.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Meta, 0, len(s.entries))
	for k, e := range s.entries {
		out = append(out, storage.Meta{Key: k, CreatedAt: e.CreatedAt, AccessedAt: e.AccessedAt})
	}

	return out, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
