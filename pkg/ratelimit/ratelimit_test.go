package ratelimit_test

import (
	"fmt"
	"qrshield/pkg/ratelimit"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
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

func TestFixedWindow_RejectsAfterLimit(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	l := ratelimit.New(ratelimit.Options{Limit: 3, Window: time.Minute, Now: clk.Now})

	for i := range 3 {
		d := l.Allow("1.2.3.4")
		require.True(t, d.Allowed)
		require.Equal(t, 3-i-1, d.Remaining)
		require.Equal(t, clk.Now().Add(time.Minute), d.ResetAt)
	}

	d := l.Allow("1.2.3.4")
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, 3, d.Limit)
	require.Equal(t, time.Minute, d.RetryAfter(clk.Now()))

	require.True(t, l.Allow("5.6.7.8").Allowed, "keys are independent")
}

func TestFixedWindow_NewWindowAfterReset(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	l := ratelimit.New(ratelimit.Options{Limit: 1, Window: time.Minute, Now: clk.Now})

	first := l.Allow("k")
	require.True(t, first.Allowed)
	require.False(t, l.Allow("k").Allowed)

	clk.Advance(time.Minute)
	d := l.Allow("k")
	require.True(t, d.Allowed)
	require.Equal(t, first.ResetAt.Add(time.Minute), d.ResetAt)
}

func TestFixedWindow_BurstAcrossBoundary(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	l := ratelimit.New(ratelimit.Options{Limit: 2, Window: time.Minute, Now: clk.Now})

	require.True(t, l.Allow("k").Allowed)
	clk.Advance(59 * time.Second)
	require.True(t, l.Allow("k").Allowed)
	clk.Advance(time.Second)
	require.True(t, l.Allow("k").Allowed)
	require.True(t, l.Allow("k").Allowed)
	require.False(t, l.Allow("k").Allowed)
}

func TestFixedWindow_SweepsExpiredWindows(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	l := ratelimit.New(ratelimit.Options{Limit: 1, Window: time.Minute, Now: clk.Now})

	for i := range 10 {
		l.Allow(fmt.Sprintf("client-%d", i))
	}
	require.Equal(t, 10, l.Len())

	clk.Advance(2 * time.Minute)
	l.Allow("fresh")
	require.Equal(t, 1, l.Len())
}

func TestDecision_RetryAfterRoundsUp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := ratelimit.Decision{ResetAt: now.Add(1500 * time.Millisecond)}
	require.Equal(t, 2*time.Second, d.RetryAfter(now))
	require.Equal(t, time.Duration(0), d.RetryAfter(now.Add(time.Hour)))
}

func TestFixedWindow_Concurrent(t *testing.T) {
	l := ratelimit.New(ratelimit.Options{Limit: 50, Window: time.Hour})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(50), admitted.Load())
}
