package persistence

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/blobstore"
	"github.com/hupe1980/hyperhist/codec"
	"github.com/hupe1980/hyperhist/resource"
)

type testMeta struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

func rowOf(i int) []byte {
	// Variable-length rows exercise the offset table.
	b := binary.LittleEndian.AppendUint32(nil, uint32(i))
	for range i % 5 {
		b = append(b, byte(i))
	}
	return b
}

func writeRows() RowFunc {
	return func(dst []byte, i int) ([]byte, error) {
		return append(dst, rowOf(i)...), nil
	}
}

func writeTestTable(t *testing.T, s *Store, name, table string, rows int) {
	t.Helper()
	ctx := context.Background()

	w, err := s.OpenForWrite(ctx, name)
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(ctx, table, testMeta{Kind: "test", Count: rows}, rows, writeRows()))
	require.NoError(t, w.Commit(ctx))
}

func TestStore_WriteRead(t *testing.T) {
	for _, ct := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			ctx := context.Background()
			s := New(blobstore.NewMemoryStore(), WithCompression(ct), WithPageRows(7))
			defer s.Close()

			writeTestTable(t, s, "h", "nodes", 100)

			r, err := s.OpenForRead(ctx, "h")
			require.NoError(t, err)
			assert.True(t, r.HasTable("nodes"))
			assert.False(t, r.HasTable("content"))

			tbl, err := r.OpenTable(ctx, "nodes")
			require.NoError(t, err)
			defer tbl.Close()

			assert.Equal(t, 100, tbl.Rows())
			assert.Equal(t, ct, tbl.Compression())

			var meta testMeta
			require.NoError(t, tbl.DecodeMeta(&meta))
			assert.Equal(t, testMeta{Kind: "test", Count: 100}, meta)

			for _, i := range []int{0, 6, 7, 50, 99} {
				row, err := tbl.Row(ctx, i)
				require.NoError(t, err)
				assert.Equal(t, rowOf(i), row, "row %d", i)
			}

			seen := 0
			require.NoError(t, tbl.ForEach(ctx, func(i int, row []byte) error {
				assert.Equal(t, rowOf(i), row)
				seen++
				return nil
			}))
			assert.Equal(t, 100, seen)
			require.NoError(t, tbl.Verify(ctx))
		})
	}
}

func TestStore_EmptyTable(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())

	writeTestTable(t, s, "h", "nodes", 0)

	n, err := s.RowCount(ctx, "h", "nodes")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_MissingTable(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())
	writeTestTable(t, s, "h", "nodes", 3)

	r, err := s.OpenForRead(ctx, "h")
	require.NoError(t, err)

	_, err = r.OpenTable(ctx, "content")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "content", se.Table)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())

	_, err := s.OpenForRead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Lease(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())

	w, err := s.OpenForWrite(ctx, "h")
	require.NoError(t, err)

	_, err = s.OpenForWrite(ctx, "h")
	assert.ErrorIs(t, err, ErrLocked)

	_, err = s.Acquire("h")
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, w.Abort(ctx))

	lease, err := s.Acquire("h")
	require.NoError(t, err)
	lease.Release()
	lease.Release()
}

func TestStore_NewWriterKeepsLease(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())

	lease, err := s.Acquire("h")
	require.NoError(t, err)
	defer lease.Release()

	w, err := s.NewWriter(ctx, lease)
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(ctx, "nodes", testMeta{}, 2, writeRows()))
	require.NoError(t, w.Commit(ctx))

	_, err = s.Acquire("h")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestStore_AbortLeavesCurrent(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)
	writeTestTable(t, s, "h", "nodes", 3)

	gen, err := s.Generation(ctx, "h")
	require.NoError(t, err)

	w, err := s.OpenForWrite(ctx, "h")
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(ctx, "nodes", testMeta{}, 10, writeRows()))
	require.NoError(t, w.Abort(ctx))

	after, err := s.Generation(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, gen, after)

	names, err := blobs.List(ctx, "h/")
	require.NoError(t, err)
	assert.Len(t, names, 2) // CURRENT and one table

	assert.ErrorIs(t, w.WriteTable(ctx, "x", testMeta{}, 0, writeRows()), ErrClosed)
}

func TestStore_FailedRowAbortsTable(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)

	w, err := s.OpenForWrite(ctx, "h")
	require.NoError(t, err)
	defer w.Close()

	boom := fmt.Errorf("boom")
	err = w.WriteTable(ctx, "nodes", testMeta{}, 5, func(dst []byte, i int) ([]byte, error) {
		if i == 3 {
			return nil, boom
		}
		return append(dst, byte(i)), nil
	})
	require.ErrorIs(t, err, boom)

	names, err := blobs.List(ctx, "h/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)

	writeTestTable(t, s, "h", "nodes", 3)
	writeTestTable(t, s, "h", "nodes", 4)
	writeTestTable(t, s, "other", "nodes", 1)

	lease, err := s.Acquire("h")
	require.NoError(t, err)
	deleted, err := s.Prune(ctx, lease)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	lease.Release()

	names, err := blobs.List(ctx, "h/")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	n, err := s.RowCount(ctx, "h", "nodes")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ok, err := s.Exists(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_PruneNeedsHeldLease(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())
	writeTestTable(t, s, "h", "nodes", 3)
	writeTestTable(t, s, "h", "nodes", 4)

	_, err := s.Prune(ctx, nil)
	assert.ErrorIs(t, err, ErrLeaseNotHeld)

	lease, err := s.Acquire("h")
	require.NoError(t, err)
	lease.Release()
	_, err = s.Prune(ctx, lease)
	assert.ErrorIs(t, err, ErrLeaseNotHeld)

	foreign, err := New(blobstore.NewMemoryStore()).Acquire("h")
	require.NoError(t, err)
	defer foreign.Release()
	_, err = s.Prune(ctx, foreign)
	assert.ErrorIs(t, err, ErrLeaseNotHeld)

	n, err := s.RowCount(ctx, "h", "nodes")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore())
	writeTestTable(t, s, "h", "nodes", 3)

	require.NoError(t, s.Remove(ctx, "h"))
	ok, err := s.Exists(ctx, "h")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_InvalidNames(t *testing.T) {
	s := New(blobstore.NewMemoryStore())
	for _, name := range []string{"", "/abs", "a/../b", "a/CURRENT", "trailing/"} {
		_, err := s.Acquire(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestStore_PageCache(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore(), WithPageRows(4))
	writeTestTable(t, s, "h", "nodes", 16)

	r, err := s.OpenForRead(ctx, "h")
	require.NoError(t, err)
	tbl, err := r.OpenTable(ctx, "nodes")
	require.NoError(t, err)
	defer tbl.Close()

	for range 3 {
		_, err := tbl.Row(ctx, 5)
		require.NoError(t, err)
	}
	hits, misses := s.CacheStats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestStore_ResourceControllerCountsIO(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{})
	s := New(blobstore.NewMemoryStore(), WithResourceController(rc), WithCacheBytes(0))
	writeTestTable(t, s, "h", "nodes", 10)

	written := rc.IOBytes()
	assert.Positive(t, written)

	_, err := s.RowCount(ctx, "h", "nodes")
	require.NoError(t, err)
	assert.Greater(t, rc.IOBytes(), written)
}

func TestTable_CorruptPage(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs, WithCacheBytes(0))
	writeTestTable(t, s, "h", "nodes", 10)

	gen, err := s.Generation(ctx, "h")
	require.NoError(t, err)
	name := tablePath("h", gen, "nodes")

	b, err := blobs.Open(ctx, name)
	require.NoError(t, err)
	data, err := blobstore.ReadAll(ctx, b)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	// Flip a byte inside the first page, right after the header.
	r, err := s.OpenForRead(ctx, "h")
	require.NoError(t, err)
	tbl, err := r.OpenTable(ctx, "nodes")
	require.NoError(t, err)
	off := tbl.pages[0].offset + blockHeaderSize
	require.NoError(t, tbl.Close())

	data[off] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, name, data))

	tbl, err = r.OpenTable(ctx, "nodes")
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.Row(ctx, 0)
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
	assert.True(t, IsChecksumMismatch(tbl.Verify(ctx)))
}

func TestTable_NotATable(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	s := New(blobs)
	writeTestTable(t, s, "h", "nodes", 1)

	gen, err := s.Generation(ctx, "h")
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, tablePath("h", gen, "nodes"), make([]byte, 64)))

	r, err := s.OpenForRead(ctx, "h")
	require.NoError(t, err)
	_, err = r.OpenTable(ctx, "nodes")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestTable_DecodeMetaWithRecordedCodec(t *testing.T) {
	ctx := context.Background()
	s := New(blobstore.NewMemoryStore(), WithCodec(codec.JSON{}))
	writeTestTable(t, s, "h", "nodes", 1)

	r, err := s.OpenForRead(ctx, "h")
	require.NoError(t, err)
	tbl, err := r.OpenTable(ctx, "nodes")
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, "json", tbl.Codec())
	var meta testMeta
	require.NoError(t, tbl.DecodeMeta(&meta))
	assert.Equal(t, 1, meta.Count)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	var got []byte
	require.NoError(t, LoadFromFile(path, func(r io.Reader) error {
		got, err = io.ReadAll(r)
		return err
	}))
	assert.Equal(t, "hello", string(got))
}
