package cache_test

import (
	"context"
	"errors"
	"fmt"
	"qrshield/pkg/cache"
	"qrshield/pkg/storage"
	"qrshield/pkg/storage/memory"
	mockstorage "qrshield/pkg/storage/mock"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type payload struct {
	Chain []string `json:"chain"`
}

func newCache(store storage.Store, clk *clock, maxAge time.Duration, maxEntries int) *cache.TTL[payload] {
	return cache.New[payload](store, cache.Options{Name: "test", MaxAge: maxAge, MaxEntries: maxEntries, Now: clk.Now})
}

func TestTTL_SetGet(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	c := newCache(memory.New(), clk, time.Hour, 10)

	_, ok := c.Get(ctx, "a")
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", payload{Chain: []string{"https://a.example/"}}))
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, []string{"https://a.example/"}, got.Chain)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok = c.Get(ctx, "a")
	require.False(t, ok)
}

func TestTTL_ExpiresByCreationAge(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := memory.New()
	c := newCache(store, clk, time.Hour, 10)

	require.NoError(t, c.Set(ctx, "a", payload{}))

	clk.Advance(59 * time.Minute)
	_, ok := c.Get(ctx, "a")
	require.True(t, ok, "access does not extend the lifetime")

	clk.Advance(2 * time.Minute)
	_, ok = c.Get(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 0, store.Len(), "expired entry is deleted on read")
}

func TestTTL_PruneRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := memory.New()
	c := newCache(store, clk, time.Hour, 10)

	require.NoError(t, c.Set(ctx, "old", payload{}))
	clk.Advance(2 * time.Hour)
	require.NoError(t, c.Set(ctx, "new", payload{}))

	require.Equal(t, 1, store.Len())
	_, ok := c.Get(ctx, "new")
	require.True(t, ok)
}

func TestTTL_EvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := memory.New()
	c := newCache(store, clk, 24*time.Hour, 3)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, payload{}))
		clk.Advance(time.Second)
	}

	// touch a so b becomes the least recently accessed
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)
	clk.Advance(time.Second)

	require.NoError(t, c.Set(ctx, "d", payload{}))
	require.Equal(t, 3, store.Len())

	_, ok = c.Get(ctx, "b")
	require.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok = c.Get(ctx, k)
		require.True(t, ok, k)
	}
}

func TestTTL_StoreErrorIsMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any(), "a").Return(storage.Entry{}, false, errors.New("connection reset"))

	c := newCache(store, &clock{now: time.Unix(1700000000, 0)}, time.Hour, 10)
	_, ok := c.Get(context.Background(), "a")
	require.False(t, ok)
}

func TestTTL_CorruptEntryIsDeleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	now := time.Unix(1700000000, 0)
	store.EXPECT().Load(gomock.Any(), "a").Return(storage.Entry{Value: []byte("{"), CreatedAt: now, AccessedAt: now}, true, nil)
	store.EXPECT().Delete(gomock.Any(), "a").Return(nil)

	c := newCache(store, &clock{now: now}, time.Hour, 10)
	_, ok := c.Get(context.Background(), "a")
	require.False(t, ok)
}

func TestTTL_SetSurfacesSaveError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mockstorage.NewMockStore(ctrl)
	store.EXPECT().Save(gomock.Any(), "a", gomock.Any()).Return(errors.New("read only"))

	c := newCache(store, &clock{now: time.Unix(1700000000, 0)}, time.Hour, 10)
	require.Error(t, c.Set(context.Background(), "a", payload{}))
}

func TestTTL_Concurrent(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := memory.New()
	c := newCache(store, clk, time.Hour, 20)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%30)
			_ = c.Set(ctx, key, payload{Chain: []string{key}})
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	require.NoError(t, c.Prune(ctx))
	require.LessOrEqual(t, store.Len(), 20)
}

// listHookStore runs afterList between listing and returning, the window in
// which a concurrent writer may touch a listed key.
type listHookStore struct {
	*memory.Store
	afterList func()
}

func (s *listHookStore) List(ctx context.Context) ([]storage.Meta, error) {
	metas, err := s.Store.List(ctx)
	if s.afterList != nil {
		s.afterList()
		s.afterList = nil
	}

	return metas, err
}

func TestTTL_PruneKeepsEntryRewrittenAfterListing(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := &listHookStore{Store: memory.New()}
	c := newCache(store, clk, time.Hour, 10)

	require.NoError(t, c.Set(ctx, "k", payload{Chain: []string{"stale"}}))
	clk.Advance(2 * time.Hour)

	// k is listed as expired, then a fresh value lands before eviction
	store.afterList = func() {
		now := clk.Now()
		require.NoError(t, store.Store.Save(ctx, "k", storage.Entry{
			Value:      []byte(`{"chain":["fresh"]}`),
			CreatedAt:  now,
			AccessedAt: now,
		}))
	}
	require.NoError(t, c.Prune(ctx))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []string{"fresh"}, got.Chain)
}

func TestTTL_PruneKeepsOverflowEntryReadAfterListing(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Unix(1700000000, 0)}
	store := &listHookStore{Store: memory.New()}
	c := newCache(store, clk, 24*time.Hour, 2)

	for _, k := range []string{"a", "b"} {
		require.NoError(t, c.Set(ctx, k, payload{}))
		clk.Advance(time.Second)
	}
	require.NoError(t, store.Store.Save(ctx, "c", storage.Entry{Value: []byte(`{}`), CreatedAt: clk.Now(), AccessedAt: clk.Now()}))
	clk.Advance(time.Second)

	// a is the eviction candidate when listed, then gets a hit
	store.afterList = func() {
		_, ok := c.Get(ctx, "a")
		require.True(t, ok)
	}
	require.NoError(t, c.Prune(ctx))

	require.Equal(t, 3, store.Len(), "the refreshed entry survives this pass")
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)
}

func TestKey(t *testing.T) {
	require.Len(t, cache.Key("https://example.com/"), 64)
	require.Equal(t, cache.Key("https://example.com/"), cache.Key("https://example.com/"))
	require.NotEqual(t, cache.Key("https://example.com/"), cache.Key("https://example.com/a"))
}
