package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoEntryExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	forever := newMongoEntry("k", []byte("v"), 0, now)
	assert.Nil(t, forever.ExpiresAt)
	assert.False(t, forever.expired(now.Add(24*time.Hour)))

	short := newMongoEntry("k", []byte("v"), time.Minute, now)
	require.NotNil(t, short.ExpiresAt)
	assert.False(t, short.expired(now.Add(30*time.Second)))
	assert.True(t, short.expired(now.Add(2*time.Minute)))
}

// TestMongoCacheIntegration runs against a live server when
// WKIMAGE_TEST_MONGO_URI is set.
func TestMongoCacheIntegration(t *testing.T) {
	uri := os.Getenv("WKIMAGE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WKIMAGE_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := OpenMongoCache(ctx, uri, "wkimage_test", "renders_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.coll.Drop(context.Background())
		_ = c.Close()
	})

	require.NoError(t, c.Set(ctx, "render:a", []byte("png"), time.Hour))
	data, hit, err := c.Get(ctx, "render:a")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, c.Set(ctx, "render:a", []byte("png2"), 0))
	data, _, err = c.Get(ctx, "render:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("png2"), data)

	require.NoError(t, c.Clear(ctx))
	_, hit, err = c.Get(ctx, "render:a")
	require.NoError(t, err)
	assert.False(t, hit)
}
