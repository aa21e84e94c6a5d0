package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/resource"
)

func pageKey(path string, page uint64) CacheKey {
	return CacheKey{Kind: CacheKindPage, Path: path, Offset: page}
}

func TestLRUBlockCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(10, nil)

	c.Set(ctx, pageKey("a", 0), make([]byte, 4))
	c.Set(ctx, pageKey("a", 1), make([]byte, 4))
	_, ok := c.Get(ctx, pageKey("a", 0)) // a/0 becomes most recent
	require.True(t, ok)

	c.Set(ctx, pageKey("a", 2), make([]byte, 4))

	_, ok = c.Get(ctx, pageKey("a", 1))
	assert.False(t, ok)
	_, ok = c.Get(ctx, pageKey("a", 0))
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUBlockCache_TooLarge(t *testing.T) {
	c := NewLRUBlockCache(4, nil)
	c.Set(context.Background(), pageKey("a", 0), make([]byte, 5))
	assert.Zero(t, c.Len())
}

func TestLRUBlockCache_Replace(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(10, nil)
	c.Set(ctx, pageKey("a", 0), []byte{1, 2})
	c.Set(ctx, pageKey("a", 0), []byte{3, 4, 5})

	b, ok := c.Get(ctx, pageKey("a", 0))
	require.True(t, ok)
	assert.Equal(t, []byte{3, 4, 5}, b)
	assert.Equal(t, int64(3), c.Size())
}

func TestLRUBlockCache_ResourceController(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 6})
	c := NewLRUBlockCache(100, rc)

	c.Set(ctx, pageKey("a", 0), make([]byte, 4))
	c.Set(ctx, pageKey("a", 1), make([]byte, 4)) // refused by the controller
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(4), rc.MemoryUsage())

	InvalidatePath(c, "a")
	assert.Zero(t, c.Len())
	assert.Zero(t, rc.MemoryUsage())
}

func TestLRUBlockCache_InvalidateByKind(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(100, nil)
	c.Set(ctx, pageKey("a", 0), []byte{1})
	c.Set(ctx, CacheKey{Kind: CacheKindBlob, Path: "a"}, []byte{1})

	c.Invalidate(func(k CacheKey) bool { return k.Kind == CacheKindBlob })
	assert.Equal(t, 1, c.Len())
	require.NoError(t, c.Close())
	assert.Zero(t, c.Len())
}
