package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	l, err := NewRedisLimiter(client, Window{Name: "click", Limit: 60, Period: time.Hour})
	require.NoError(t, err)

	for i := 1; i <= 60; i++ {
		res, err := l.Allow(ctx, "fp")
		require.NoError(t, err)
		require.Truef(t, res.Allowed, "click %d should pass", i)
	}

	res, err := l.Allow(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(61), res.Count)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ResetAt, 5*time.Second)

	assert.True(t, mr.Exists("ratelimit:click:fp"))
	assert.Greater(t, mr.TTL("ratelimit:click:fp"), 59*time.Minute)

	mr.FastForward(time.Hour + time.Second)

	res, err = l.Allow(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)

	window := Window{Name: "complete", Limit: 10, Period: time.Minute}
	first, err := NewRedisLimiter(client, window)
	require.NoError(t, err)
	second, err := NewRedisLimiter(client, window)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := first.Allow(ctx, "global")
		require.NoError(t, err)
		_, err = second.Allow(ctx, "global")
		require.NoError(t, err)
	}

	res, err := first.Allow(ctx, "global")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(11), res.Count)
}

func TestRedisLimiter_RearmsMissingTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	require.NoError(t, mr.Set("ratelimit:click:fp", "5"))

	l, err := NewRedisLimiter(client, Window{Name: "click", Limit: 60, Period: time.Hour})
	require.NoError(t, err)

	res, err := l.Allow(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Count)
	assert.Greater(t, mr.TTL("ratelimit:click:fp"), time.Duration(0))
}

func TestRedisLimiter_StoreDown(t *testing.T) {
	mr, client := newTestRedis(t)
	l, err := NewRedisLimiter(client, Window{Name: "click", Limit: 60, Period: time.Hour})
	require.NoError(t, err)

	mr.Close()
	_, err = l.Allow(context.Background(), "fp")
	assert.Error(t, err)
}
