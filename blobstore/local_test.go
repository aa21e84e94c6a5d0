package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	data := []byte("hello world, this is a table page")
	w, err := store.Create(ctx, "h/gen-1/binning.tbl")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)

	// Not visible before Close.
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	_, err = os.Stat(filepath.Join(root, "h", "gen-1", "binning.tbl"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "h/gen-1/binning.tbl")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	rc, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "this", string(got))

	all, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, all)

	require.NoError(t, store.Put(ctx, "h/CURRENT", []byte("gen-1")))
	names, err = store.List(ctx, "h/")
	require.NoError(t, err)
	assert.Equal(t, []string{"h/CURRENT", "h/gen-1/binning.tbl"}, names)
}

func TestLocalStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "h/CURRENT", []byte("a")))
	require.NoError(t, store.Put(ctx, "h/CURRENT", []byte("bb")))

	blob, err := store.Open(ctx, "h/CURRENT")
	require.NoError(t, err)
	defer blob.Close()
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "bb", string(data))
}

func TestLocalStore_DeleteRemovesEmptyDirs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	require.NoError(t, store.Put(ctx, "h/gen-1/content.tbl", []byte("x")))
	require.NoError(t, store.Put(ctx, "h/CURRENT", []byte("gen-1")))
	require.NoError(t, store.Delete(ctx, "h/gen-1/content.tbl"))
	require.NoError(t, store.Delete(ctx, "h/gen-1/content.tbl"))

	_, err := os.Stat(filepath.Join(root, "h", "gen-1"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(root, "h"))
	require.NoError(t, err)
	_, err = os.Stat(root)
	require.NoError(t, err)
}

func TestLocalStore_OpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
