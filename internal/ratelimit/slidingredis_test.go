package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	now = now.Add(window + time.Millisecond)
	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter("mem")
	ctx := context.Background()

	allowed, remaining, _, err := l.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)

	allowed, _, _, err = l.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, remaining, _, err = l.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}
