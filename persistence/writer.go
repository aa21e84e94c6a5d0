package persistence

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"

	"github.com/hupe1980/hyperhist/resource"
)

// RowFunc appends the encoding of row i to dst and returns the extended slice.
type RowFunc func(dst []byte, i int) ([]byte, error)

// Writer writes the tables of one new generation. Nothing becomes visible to
// readers until Commit switches CURRENT to the new generation.
type Writer struct {
	store     *Store
	lease     *Lease
	ownsLease bool
	name      string
	gen       string

	written []string
	done    bool
}

// Name returns the histogram name.
func (w *Writer) Name() string { return w.name }

// Generation returns the id of the generation being written.
func (w *Writer) Generation() string { return w.gen }

// WriteTable writes a table of rows rows. meta is encoded with the store
// codec and stored in the table header.
func (w *Writer) WriteTable(ctx context.Context, table string, meta any, rows int, fn RowFunc) (err error) {
	if w.done {
		return ErrClosed
	}
	if err := validateTable(table); err != nil {
		return err
	}
	if slices.Contains(w.written, table) {
		return fmt.Errorf("persistence: table %q written twice", table)
	}

	opts := w.store.opts
	metaBytes, err := opts.Codec.Marshal(meta)
	if err != nil {
		return fmt.Errorf("persistence: encode %s meta: %w", table, err)
	}
	header, err := encodeHeader(tableHeader{
		compression: opts.Compression,
		pageRows:    opts.PageRows,
		codec:       opts.Codec.Name(),
		meta:        metaBytes,
	})
	if err != nil {
		return err
	}

	blobName := tablePath(w.name, w.gen, table)
	blob, err := w.store.blobs.Create(ctx, blobName)
	if err != nil {
		return fmt.Errorf("persistence: create %s: %w", blobName, err)
	}
	w.written = append(w.written, table)
	defer func() {
		if err != nil {
			_ = blob.Close()
			_ = w.store.blobs.Delete(context.WithoutCancel(ctx), blobName)
		}
	}()

	cw := NewChecksumWriter(resource.NewRateLimitedWriter(ctx, blob, opts.ResourceController))
	if _, err := cw.Write(header); err != nil {
		return err
	}

	var (
		pages []pageRef
		ends  = make([]uint32, 0, opts.PageRows)
		data  []byte
	)
	flush := func() error {
		if len(ends) == 0 {
			return nil
		}
		block, err := compressBlock(encodePage(ends, data), opts.Compression)
		if err != nil {
			return fmt.Errorf("persistence: compress page %d: %w", len(pages), err)
		}
		pages = append(pages, pageRef{
			offset: cw.Written(),
			length: len(block),
			crc:    CalculateChecksum(block),
		})
		if _, err := cw.Write(block); err != nil {
			return err
		}
		ends, data = ends[:0], data[:0]
		return nil
	}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if data, err = fn(data, i); err != nil {
			return fmt.Errorf("persistence: %s row %d: %w", table, i, err)
		}
		ends = append(ends, uint32(len(data)))
		if len(ends) == opts.PageRows {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	indexOffset := cw.Written()
	index := encodeIndex(pages)
	if _, err := cw.Write(index); err != nil {
		return err
	}
	footer := encodeFooter(tableFooter{
		rows:        rows,
		pages:       len(pages),
		headerLen:   len(header),
		indexOffset: indexOffset,
		indexCRC:    CalculateChecksum(index),
		fileCRC:     cw.Sum(),
	})
	if _, err := cw.Write(footer); err != nil {
		return err
	}
	if err := blob.Sync(); err != nil {
		return err
	}
	return blob.Close()
}

// Tables returns the tables written so far.
func (w *Writer) Tables() []string { return slices.Clone(w.written) }

// Commit atomically makes the new generation current.
func (w *Writer) Commit(ctx context.Context) error {
	if w.done {
		return ErrClosed
	}
	if err := w.store.blobs.Put(ctx, path.Join(w.name, CurrentFile), []byte(w.gen)); err != nil {
		return fmt.Errorf("persistence: commit %s: %w", w.name, err)
	}
	w.finish()
	return nil
}

// Abort deletes the tables written so far.
func (w *Writer) Abort(ctx context.Context) error {
	if w.done {
		return nil
	}
	var errs []error
	for _, t := range w.written {
		if err := w.store.blobs.Delete(ctx, tablePath(w.name, w.gen, t)); err != nil {
			errs = append(errs, err)
		}
	}
	w.finish()
	return errors.Join(errs...)
}

// Close aborts an uncommitted writer.
func (w *Writer) Close() error {
	return w.Abort(context.Background())
}

func (w *Writer) finish() {
	w.done = true
	if w.ownsLease {
		w.lease.Release()
	}
}
