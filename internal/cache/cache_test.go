package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "resolution:abc1234", ResolutionKey("abc1234"))
	assert.Equal(t, "analytics:abc1234:referrers:ff00", AnalyticsKey("abc1234", "referrers", "ff00"))
	assert.Equal(t, "clicks:abc1234", ClickCounterKey("abc1234"))
}

// runCacheContract проверяет общее поведение любой реализации Cache
func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		val, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, val)
	})

	t.Run("Set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute))
		val, ok, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", val)

		exists, err := c.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k2", "v2", 0))
		require.NoError(t, c.Delete(ctx, "k2"))
		exists, err := c.Exists(ctx, "k2")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Increment", func(t *testing.T) {
		n, err := c.Increment(ctx, "counter", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = c.Increment(ctx, "counter", 4)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		val, ok, err := c.Get(ctx, "counter")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "5", val)
	})

	t.Run("Increment string value", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "numeric", "10", time.Minute))
		n, err := c.Increment(ctx, "numeric", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, NewMemoryCache(time.Minute))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	require.NoError(t, c.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_IncrementNonNumeric(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	require.NoError(t, c.Set(ctx, "text", "hello", 0))
	_, err := c.Increment(ctx, "text", 1)
	assert.Error(t, err)
}
