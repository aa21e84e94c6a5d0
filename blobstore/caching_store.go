package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hyperhist/internal/cache"
)

// DefaultBlockSize is the caching granularity of CachingStore.
const DefaultBlockSize = 64 << 10

// CachingStore adds a block cache in front of a remote BlobStore. Table
// headers, indexes and pages of store-backed histograms on S3 or MinIO are
// served from the cache after their first read.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
	fetchers  int
}

var _ BlobStore = (*CachingStore)(nil)

// NewCachingStore wraps inner. blockSize defaults to DefaultBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize, fetchers: 16}
}

// Open implements BlobStore.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{inner: b, store: s, name: name}, nil
}

// Create implements BlobStore.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

// Put implements BlobStore.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete implements BlobStore.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List implements BlobStore.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(k cache.CacheKey) bool {
		return k.Kind == cache.CacheKindBlob && k.Path == name
	})
}

type cachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *cachingBlob) Close() error { return b.inner.Close() }

func (b *cachingBlob) Size() int64 { return b.inner.Size() }

func (b *cachingBlob) key(blk int64) cache.CacheKey {
	return cache.CacheKey{Kind: cache.CacheKindBlob, Path: b.name, Offset: uint64(blk)}
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	end := min(off+int64(len(p)), size)
	first, last := off/bs, (end-1)/bs
	if err := b.fill(ctx, first, last); err != nil {
		return 0, err
	}

	read := 0
	for blk := first; blk <= last; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return read, err
		}
		blkStart := blk * bs
		from := max(blkStart, off)
		to := min(blkStart+int64(len(data)), end)
		if to <= from {
			break
		}
		read += copy(p[from-off:], data[from-blkStart:to-blkStart])
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

// fill loads the missing blocks in [first, last], fetching each contiguous
// run of misses with a single backend read.
func (b *cachingBlob) fill(ctx context.Context, first, last int64) error {
	type run struct{ start, count int64 }
	var runs []run
	for blk := first; blk <= last; blk++ {
		if _, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].start+runs[n-1].count == blk {
			runs[n-1].count++
		} else {
			runs = append(runs, run{start: blk, count: 1})
		}
	}
	if len(runs) == 0 {
		return nil
	}

	bs := b.store.blockSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.store.fetchers)
	for _, r := range runs {
		g.Go(func() error {
			start := r.start * bs
			length := min(r.count*bs, b.Size()-start)
			buf := make([]byte, length)
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]
			for i := int64(0); i < r.count && i*bs < int64(len(buf)); i++ {
				chunk := buf[i*bs : min((i+1)*bs, int64(len(buf)))]
				// Copy so a cached block does not pin the whole run.
				b.store.cache.Set(gctx, b.key(r.start+i), append([]byte(nil), chunk...))
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.store.cache.Get(ctx, b.key(blk)); ok {
		return data, nil
	}
	// Evicted between fill and use, or refused by the cache.
	bs := b.store.blockSize
	buf := make([]byte, min(bs, b.Size()-blk*bs))
	n, err := b.inner.ReadAt(ctx, buf, blk*bs)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (b *cachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(io.NewSectionReader(SectionReader(ctx, b), off, length)), nil
}
