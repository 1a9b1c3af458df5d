// Package redis implements storage.Store on top of a Redis hash per namespace.
package redis

import (
	"context"
	"fmt"
	"qrshield/pkg/storage"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/go-redis/redis/v8"
)

// KeyPrefix is prepended to every namespace hash key.
const KeyPrefix = "qrshield:cache:"

// Options defines the Redis connection parameters.
type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Open creates a client and verifies the connection. Connection failures are
// reported as storage.ErrUnavailable.
func Open(ctx context.Context, opts Options) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("%w: redis ping: %w", storage.ErrUnavailable, err)
	}

	return client, nil
}

// Store keeps all entries of one namespace as fields of a single hash.
type Store struct {
	client goredis.UniversalClient
	key    string
}

var _ storage.Store = (*Store)(nil)

// New returns a store for namespace using client.
func New(client goredis.UniversalClient, namespace string) *Store {
	return &Store{client: client, key: KeyPrefix + namespace}
}

// Load implements storage.Store.
func (s *Store) Load(ctx context.Context, key string) (storage.Entry, bool, error) {
	b, err := s.client.HGet(ctx, s.key, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return storage.Entry{}, false, nil
	}
	if err != nil {
		return storage.Entry{}, false, fmt.Errorf("could not load %q from redis: %w", key, err)
	}

	e, err := decodeEntry(b)
	if err != nil {
		return storage.Entry{}, false, err
	}

	return e, true, nil
}

// Save implements storage.Store.
func (s *Store) Save(ctx context.Context, key string, entry storage.Entry) error {
	if err := s.client.HSet(ctx, s.key, key, encodeEntry(entry)).Err(); err != nil {
		return fmt.Errorf("could not save %q to redis: %w", key, err)
	}

	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.HDel(ctx, s.key, keys...).Err(); err != nil {
		return fmt.Errorf("could not delete keys from redis: %w", err)
	}

	return nil
}

// List implements storage.Store. Entries that cannot be decoded are listed
// with zero timestamps so the cache prunes them as expired.
func (s *Store) List(ctx context.Context) ([]storage.Meta, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("could not list redis hash: %w", err)
	}

	out := make([]storage.Meta, 0, len(all))
	for k, v := range all {
		meta := storage.Meta{Key: k}
		if e, err := decodeEntry([]byte(v)); err == nil {
			meta.CreatedAt, meta.AccessedAt = e.CreatedAt, e.AccessedAt
		}
		out = append(out, meta)
	}

	return out, nil
}
