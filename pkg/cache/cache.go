// Package cache implements a generic TTL cache with age- and count-bounded
// eviction over any storage.Store.
//
// Entries older than MaxAge are never returned and are deleted lazily on read
// or during a prune pass. When more than MaxEntries remain after removing
// expired entries, the least recently accessed ones are evicted. Operations on
// one key are serialized within the process.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"qrshield/pkg/logger"
	"qrshield/pkg/storage"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const lockStripes = 64

// Options configures a TTL cache.
type Options struct {
	// Name labels metrics and logs, e.g. "expansions".
	Name string
	// MaxAge bounds how long an entry is served after it was written. Zero disables age expiry.
	MaxAge time.Duration
	// MaxEntries caps the number of entries kept after a prune pass. Zero disables the cap.
	MaxEntries int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// TTL is a typed cache whose values are stored JSON encoded.
type TTL[T any] struct {
	store storage.Store
	opts  Options

	locks   [lockStripes]sync.Mutex
	pruneMu sync.Mutex

	lookups metric.Int64Counter
	evicted metric.Int64Counter
}

// New creates a TTL cache over store.
func New[T any](store storage.Store, opts Options) *TTL[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	meter := otel.Meter("qrshield/pkg/cache")
	lookups, _ := meter.Int64Counter("qrshield_cache_lookups",
		metric.WithDescription("Cache lookups by result"))
	evicted, _ := meter.Int64Counter("qrshield_cache_evictions",
		metric.WithDescription("Entries removed by age or count"))

	return &TTL[T]{
		store:   store,
		opts:    opts,
		lookups: lookups,
		evicted: evicted,
	}
}

func (c *TTL[T]) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &c.locks[h.Sum32()%lockStripes]
	mu.Lock()

	return mu.Unlock
}

func (c *TTL[T]) expired(createdAt, now time.Time) bool {
	return c.opts.MaxAge > 0 && now.Sub(createdAt) > c.opts.MaxAge
}

func (c *TTL[T]) record(ctx context.Context, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", c.opts.Name),
		attribute.String("result", result),
	))
}

// Get returns the value stored under key. Missing, expired and undecodable
// entries are misses; store failures are logged and reported as misses too.
func (c *TTL[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	unlock := c.lock(key)
	defer unlock()

	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		logger.Warn(ctx, "could not read cache entry", zap.String("cache", c.opts.Name), zap.Error(err))
		c.record(ctx, "error")

		return zero, false
	}
	if !ok {
		c.record(ctx, "miss")

		return zero, false
	}

	now := c.opts.Now()
	if c.expired(entry.CreatedAt, now) {
		if err := c.store.Delete(ctx, key); err != nil {
			logger.Warn(ctx, "could not delete expired cache entry", zap.String("cache", c.opts.Name), zap.Error(err))
		}
		c.evicted.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", c.opts.Name), attribute.String("reason", "age")))
		c.record(ctx, "expired")

		return zero, false
	}

	var value T
	if err := json.Unmarshal(entry.Value, &value); err != nil {
		logger.Warn(ctx, "could not decode cache entry", zap.String("cache", c.opts.Name), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		c.record(ctx, "error")

		return zero, false
	}

	entry.AccessedAt = now
	if err := c.store.Save(ctx, key, entry); err != nil {
		logger.Warn(ctx, "could not refresh cache entry", zap.String("cache", c.opts.Name), zap.Error(err))
	}
	c.record(ctx, "hit")

	return value, true
}

// Set stores value under key and runs a prune pass.
func (c *TTL[T]) Set(ctx context.Context, key string, value T) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode cache value: %w", err)
	}

	now := c.opts.Now()
	unlock := c.lock(key)
	err = c.store.Save(ctx, key, storage.Entry{Value: b, CreatedAt: now, AccessedAt: now})
	unlock()
	if err != nil {
		return fmt.Errorf("could not store cache value: %w", err)
	}

	if err := c.Prune(ctx); err != nil {
		logger.Warn(ctx, "could not prune cache", zap.String("cache", c.opts.Name), zap.Error(err))
	}

	return nil
}

// Delete removes key.
func (c *TTL[T]) Delete(ctx context.Context, key string) error {
	unlock := c.lock(key)
	defer unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("could not delete cache value: %w", err)
	}

	return nil
}

// Prune deletes expired entries, then evicts the least recently accessed
// entries until at most MaxEntries remain.
func (c *TTL[T]) Prune(ctx context.Context) error {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	metas, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list cache entries: %w", err)
	}

	now := c.opts.Now()
	var expired []storage.Meta
	live := metas[:0]
	for _, m := range metas {
		if c.expired(m.CreatedAt, now) {
			expired = append(expired, m)

			continue
		}
		live = append(live, m)
	}

	var overflow []storage.Meta
	if c.opts.MaxEntries > 0 && len(live) > c.opts.MaxEntries {
		slices.SortFunc(live, func(a, b storage.Meta) int {
			if d := a.AccessedAt.Compare(b.AccessedAt); d != 0 {
				return d
			}
			if a.Key < b.Key {
				return -1
			}
			if a.Key > b.Key {
				return 1
			}

			return 0
		})
		overflow = live[:len(live)-c.opts.MaxEntries]
	}

	if err := c.remove(ctx, expired, "age", func(_ storage.Meta, e storage.Entry) bool {
		return c.expired(e.CreatedAt, now)
	}); err != nil {
		return err
	}

	return c.remove(ctx, overflow, "count", func(m storage.Meta, e storage.Entry) bool {
		// written or read since the listing: no longer the eviction candidate
		return e.CreatedAt.Equal(m.CreatedAt) && e.AccessedAt.Equal(m.AccessedAt)
	})
}

// remove deletes each victim under its key lock, re-reading it first so a
// concurrent Set or Get hit is not lost. stale decides on the current entry.
func (c *TTL[T]) remove(ctx context.Context, victims []storage.Meta, reason string,
	stale func(listed storage.Meta, current storage.Entry) bool,
) error {
	removed := 0
	for _, m := range victims {
		ok, err := c.removeOne(ctx, m, stale)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
	}
	if removed == 0 {
		return nil
	}

	c.evicted.Add(ctx, int64(removed), metric.WithAttributes(
		attribute.String("cache", c.opts.Name),
		attribute.String("reason", reason),
	))
	logger.Debug(ctx, "evicted cache entries",
		zap.String("cache", c.opts.Name),
		zap.String("reason", reason),
		zap.Int("count", removed))

	return nil
}

func (c *TTL[T]) removeOne(ctx context.Context, m storage.Meta,
	stale func(listed storage.Meta, current storage.Entry) bool,
) (bool, error) {
	unlock := c.lock(m.Key)
	defer unlock()

	entry, ok, err := c.store.Load(ctx, m.Key)
	if err != nil {
		return false, fmt.Errorf("could not reload cache entry: %w", err)
	}
	if !ok || !stale(m, entry) {
		return false, nil
	}
	if err := c.store.Delete(ctx, m.Key); err != nil {
		return false, fmt.Errorf("could not evict cache entries: %w", err)
	}

	return true, nil
}
