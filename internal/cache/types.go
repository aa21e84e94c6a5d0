package cache

import "context"

// CacheKind separates key spaces.
type CacheKind uint8

const (
	CacheKindUnknown CacheKind = iota
	CacheKindPage              // decompressed table pages
	CacheKindBlob              // raw blob store blocks
)

// CacheKey identifies an immutable block.
type CacheKey struct {
	Kind CacheKind
	// Path identifies the source blob.
	Path string
	// Offset is a page index or a byte offset, depending on Kind.
	Offset uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. The caller must treat b as immutable afterwards.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	Close() error
	Stats() (hits, misses int64)
}

// InvalidatePath drops every block of the blob at path.
func InvalidatePath(c BlockCache, path string) {
	c.Invalidate(func(k CacheKey) bool { return k.Path == path })
}
