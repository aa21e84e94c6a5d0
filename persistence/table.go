package persistence

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/hupe1980/hyperhist/blobstore"
	"github.com/hupe1980/hyperhist/codec"
	"github.com/hupe1980/hyperhist/internal/cache"
	"github.com/hupe1980/hyperhist/resource"
)

// Reader gives access to the tables of one committed generation.
type Reader struct {
	store  *Store
	name   string
	gen    string
	tables []string
}

// Name returns the histogram name.
func (r *Reader) Name() string { return r.name }

// Generation returns the generation being read.
func (r *Reader) Generation() string { return r.gen }

// Tables returns the names of the tables in the generation.
func (r *Reader) Tables() []string { return slices.Clone(r.tables) }

// HasTable reports whether the generation contains table.
func (r *Reader) HasTable(table string) bool { return slices.Contains(r.tables, table) }

// OpenTable opens a table. A missing table yields a *SchemaError wrapping
// ErrTableNotFound.
func (r *Reader) OpenTable(ctx context.Context, table string) (*Table, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if !r.HasTable(table) {
		return nil, &SchemaError{Table: table, Err: ErrTableNotFound}
	}
	return openTable(ctx, r.store, table, tablePath(r.name, r.gen, table))
}

// Close is a no-op kept for symmetry with Writer; tables are closed
// individually.
func (r *Reader) Close() error { return nil }

// Table is a read-only handle on a table file. Pages are fetched on demand
// and cached by the store. A Table is safe for concurrent use.
type Table struct {
	name   string
	path   string
	blob   blobstore.Blob
	header tableHeader
	footer tableFooter
	pages  []pageRef
	cache  *cache.LRUBlockCache
	rc     *resource.Controller

	mu     sync.RWMutex
	closed bool
}

func openTable(ctx context.Context, s *Store, name, blobName string) (*Table, error) {
	blob, err := s.blobs.Open(ctx, blobName)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", blobName, err)
	}
	t, err := readTable(ctx, blob, s.opts.ResourceController)
	if err != nil {
		_ = blob.Close()
		return nil, &SchemaError{Table: name, Err: err}
	}
	t.name = name
	t.path = blobName
	t.cache = s.cache
	return t, nil
}

func readTable(ctx context.Context, blob blobstore.Blob, rc *resource.Controller) (*Table, error) {
	size := blob.Size()
	if size < footerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, size)
	}

	buf := make([]byte, footerSize)
	if err := readFull(ctx, blob, rc, buf, size-footerSize); err != nil {
		return nil, err
	}
	footer, err := decodeFooter(buf)
	if err != nil {
		return nil, err
	}
	indexEnd := footer.indexOffset + int64(footer.pages)*indexEntrySize
	if footer.headerLen <= 0 || int64(footer.headerLen) > footer.indexOffset || indexEnd != size-footerSize {
		return nil, fmt.Errorf("%w: footer layout", ErrCorrupt)
	}

	buf = make([]byte, footer.headerLen)
	if err := readFull(ctx, blob, rc, buf, 0); err != nil {
		return nil, err
	}
	header, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	buf = make([]byte, indexEnd-footer.indexOffset)
	if err := readFull(ctx, blob, rc, buf, footer.indexOffset); err != nil {
		return nil, err
	}
	if got := CalculateChecksum(buf); got != footer.indexCRC {
		return nil, fmt.Errorf("index: %w", &ChecksumMismatchError{Expected: footer.indexCRC, Actual: got})
	}
	pages, err := decodeIndex(buf, footer.pages)
	if err != nil {
		return nil, err
	}
	if want := (footer.rows + header.pageRows - 1) / header.pageRows; want != footer.pages {
		return nil, fmt.Errorf("%w: %d rows in %d pages", ErrCorrupt, footer.rows, footer.pages)
	}

	return &Table{blob: blob, header: header, footer: footer, pages: pages, rc: rc}, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.footer.rows }

// Compression returns the page compression of the table.
func (t *Table) Compression() CompressionType { return t.header.compression }

// Codec returns the name of the metadata codec.
func (t *Table) Codec() string { return t.header.codec }

// Size returns the size of the table file in bytes.
func (t *Table) Size() int64 { return t.blob.Size() }

// DecodeMeta decodes the table metadata into v using the codec recorded in
// the header.
func (t *Table) DecodeMeta(v any) error {
	c, ok := codec.ByName(t.header.codec)
	if !ok {
		return fmt.Errorf("unknown codec %q", t.header.codec)
	}
	return c.Unmarshal(t.header.meta, v)
}

// Row returns row i. The returned slice is shared with the page cache and
// must not be modified.
func (t *Table) Row(ctx context.Context, i int) ([]byte, error) {
	if i < 0 || i >= t.footer.rows {
		return nil, fmt.Errorf("persistence: %s row %d out of range [0, %d)", t.name, i, t.footer.rows)
	}
	page, err := t.page(ctx, i/t.header.pageRows)
	if err != nil {
		return nil, err
	}
	return pageRow(page, i%t.header.pageRows)
}

// ForEach calls fn for every row in order. Iteration stops at the first
// error, which is returned unchanged.
func (t *Table) ForEach(ctx context.Context, fn func(i int, row []byte) error) error {
	i := 0
	for p := range t.pages {
		page, err := t.page(ctx, p)
		if err != nil {
			return err
		}
		n := pageRowCount(page)
		for j := range n {
			row, err := pageRow(page, j)
			if err != nil {
				return err
			}
			if err := fn(i, row); err != nil {
				return err
			}
			i++
		}
	}
	if i != t.footer.rows {
		return &SchemaError{Table: t.name, Err: fmt.Errorf("%w: read %d of %d rows", ErrCorrupt, i, t.footer.rows)}
	}
	return nil
}

// Verify streams the whole table and checks the file checksum.
func (t *Table) Verify(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	end := t.footer.indexOffset + int64(t.footer.pages)*indexEntrySize
	src := io.NewSectionReader(blobstore.SectionReader(ctx, t.blob), 0, end)
	cr := NewChecksumReader(resource.NewRateLimitedReader(ctx, src, t.rc))
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return err
	}
	if err := cr.Verify(t.footer.fileCRC); err != nil {
		return &SchemaError{Table: t.name, Err: err}
	}
	return nil
}

// Close releases the underlying blob.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.blob.Close()
}

func (t *Table) page(ctx context.Context, p int) ([]byte, error) {
	key := cache.CacheKey{Kind: cache.CacheKindPage, Path: t.path, Offset: uint64(p)}
	if t.cache != nil {
		if b, ok := t.cache.Get(ctx, key); ok {
			return b, nil
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil, ErrClosed
	}

	ref := t.pages[p]
	block := make([]byte, ref.length)
	if err := readFull(ctx, t.blob, t.rc, block, ref.offset); err != nil {
		return nil, fmt.Errorf("persistence: %s page %d: %w", t.name, p, err)
	}
	if got := CalculateChecksum(block); got != ref.crc {
		return nil, &SchemaError{
			Table: t.name,
			Err:   fmt.Errorf("page %d: %w", p, &ChecksumMismatchError{Expected: ref.crc, Actual: got}),
		}
	}
	page, err := decompressBlock(block, t.header.compression)
	if err != nil {
		return nil, &SchemaError{Table: t.name, Err: fmt.Errorf("page %d: %w", p, err)}
	}

	if t.cache != nil {
		t.cache.Set(ctx, key, page)
	}
	return page, nil
}

func readFull(ctx context.Context, b blobstore.Blob, rc *resource.Controller, buf []byte, off int64) error {
	if err := rc.AcquireIO(ctx, len(buf)); err != nil {
		return err
	}
	n, err := b.ReadAt(ctx, buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
