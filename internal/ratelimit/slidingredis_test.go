package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	first := now
	for i := 0; i < max; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
		assert.Equal(t, max-(i+1), remaining)
		assert.WithinDuration(t, first.Add(window), reset, time.Millisecond, "reset follows the oldest request")
		now = now.Add(100 * time.Millisecond)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.WithinDuration(t, first.Add(window), reset, time.Millisecond)
	assert.Zero(t, remaining)

	now = now.Add(window)
	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	assert.True(t, allowed, "old entries slide out of the window")
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 3, remaining)
}
