package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(&bytes.Buffer{}, "error", "json")
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(10, time.Minute, testLogger())
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	val, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), val)

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryCache_EvictsBeyondSize(t *testing.T) {
	c := NewMemoryCache(2, time.Minute, testLogger())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Stats()["entries"])
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond, testLogger())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_Close(t *testing.T) {
	c := NewMemoryCache(10, time.Minute, testLogger())
	require.NoError(t, c.Set(context.Background(), "a", []byte("1"), 0))
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Stats()["entries"])
}
