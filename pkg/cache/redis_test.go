package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheFromClient(client, opts...), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	require.NoError(t, c.Ping(ctx))

	_, hit, err := c.Get(ctx, "render:missing")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "render:abc", []byte("png-bytes"), 0))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"render:abc"))

	data, hit, err := c.Get(ctx, "render:abc")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, c.Delete(ctx, "render:abc"))
	_, hit, err = c.Get(ctx, "render:abc")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, WithRedisPrefix("wk-test:"))

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), 0))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("wk-test:a"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCacheUnavailable(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)
	mr.Close()

	err := c.Set(ctx, "k", []byte("v"), 0)
	require.Error(t, err)
}

func TestRedisCacheOwnedClientClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr(), "", 0)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}
