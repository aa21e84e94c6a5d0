package hyperhist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/content"
	"github.com/hupe1980/hyperhist/persistence"
)

// contentMeta is stored in the header of the content table.
type contentMeta struct {
	Bins int `json:"bins"`
}

// Capacity is the number of nodes and bins a bulk merge will produce.
type Capacity struct {
	Nodes int
	Bins  int
}

// Save writes the histogram as a new generation of name and commits it.
// Older generations are pruned unless WithKeepGenerations is set. The
// writer lease on name is held until pruning is done.
func (h *Histogram) Save(ctx context.Context, store *persistence.Store, name string) (err error) {
	if h.closed {
		return ErrClosed
	}
	start := time.Now()
	defer func() {
		h.opts.metricsCollector.RecordSave(time.Since(start), err)
	}()

	if h.bound != nil && h.bound.store == store && h.bound.name == name {
		return h.Flush(ctx)
	}

	lease, err := store.Acquire(name)
	if err != nil {
		return err
	}
	defer lease.Release()

	w, err := store.NewWriter(ctx, lease)
	if err != nil {
		return err
	}
	if err := writeGeneration(ctx, w, h.binning, h.content); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		h.logger.LogSave(ctx, name, "", err)
		return err
	}
	if err := w.Commit(ctx); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		h.logger.LogSave(ctx, name, "", err)
		return err
	}
	h.logger.LogSave(ctx, name, w.Generation(), nil)
	return h.prune(ctx, store, lease)
}

// Flush writes a store-backed histogram as a new generation of its name
// and continues on top of it.
func (h *Histogram) Flush(ctx context.Context) error {
	if h.closed {
		return ErrClosed
	}
	if h.bound == nil {
		return ErrNotStoreBacked
	}
	return h.rewrite(ctx, h.binning, h.content)
}

// rewrite commits b and c as a new generation of the bound name, reopens
// the histogram on it and prunes the older generations.
func (h *Histogram) rewrite(ctx context.Context, b binning.Binning, c *content.Store) error {
	store, name := h.bound.store, h.bound.name

	w, err := store.NewWriter(ctx, h.bound.lease)
	if err != nil {
		return err
	}
	if err := writeGeneration(ctx, w, b, c); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		return err
	}
	if err := w.Commit(ctx); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		return err
	}
	h.logger.LogSave(ctx, name, w.Generation(), nil)

	nb, nc, err := open(ctx, store, name, binning.StoreBacked)
	if err != nil {
		return err
	}
	old := h.binning
	h.binning, h.content = nb, nc
	if b != old {
		_ = b.Close()
	}
	if err := old.Close(); err != nil {
		return err
	}
	return h.prune(ctx, store, h.bound.lease)
}

func (h *Histogram) flushAndClose(ctx context.Context) error {
	w, err := h.bound.store.NewWriter(ctx, h.bound.lease)
	if err == nil {
		if err = writeGeneration(ctx, w, h.binning, h.content); err == nil {
			err = w.Commit(ctx)
		}
		if err != nil {
			_ = w.Abort(ctx)
		}
	}
	if err != nil {
		h.logger.LogSave(ctx, h.bound.name, "", err)
		return errors.Join(err, h.binning.Close())
	}
	h.logger.LogSave(ctx, h.bound.name, w.Generation(), nil)

	if err := h.binning.Close(); err != nil {
		return err
	}
	return h.prune(ctx, h.bound.store, h.bound.lease)
}

func (h *Histogram) prune(ctx context.Context, store *persistence.Store, lease *persistence.Lease) error {
	if h.opts.keepGenerations {
		return nil
	}
	n, err := store.Prune(ctx, lease)
	if err != nil {
		return fmt.Errorf("hyperhist: prune %s: %w", lease.Name(), err)
	}
	if n > 0 {
		h.logger.DebugContext(ctx, "pruned generations", "name", lease.Name(), "blobs", n)
	}
	return nil
}

func writeGeneration(ctx context.Context, w *persistence.Writer, b binning.Binning, c *content.Store) error {
	if err := b.Save(ctx, w); err != nil {
		return err
	}
	return w.WriteTable(ctx, content.TableName, contentMeta{Bins: c.NumBins()}, c.NumBins()+1,
		func(dst []byte, i int) ([]byte, error) {
			return c.AppendRow(dst, i), nil
		})
}

// open reads the committed generation of name. A StoreBacked binning keeps
// its node table open.
func open(ctx context.Context, store *persistence.Store, name string, residency binning.Residency) (binning.Binning, *content.Store, error) {
	r, err := store.OpenForRead(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	b, err := binning.Open(ctx, r, residency)
	if err != nil {
		return nil, nil, err
	}
	c, err := readContent(ctx, r, b.NumBins())
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return b, c, nil
}

func readContent(ctx context.Context, r *persistence.Reader, nBins int) (*content.Store, error) {
	t, err := r.OpenTable(ctx, content.TableName)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if t.Rows() != nBins+1 {
		return nil, &SchemaError{
			Table: content.TableName,
			Err:   fmt.Errorf("%d rows, binning has %d bins", t.Rows(), nBins),
		}
	}
	c := content.New(nBins)
	err = t.ForEach(ctx, func(i int, row []byte) error {
		if err := c.SetRow(i, row); err != nil {
			return &SchemaError{Table: content.TableName, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Load opens the histogram stored under name. With WithResidency(StoreBacked)
// the nodes are paged on demand and the histogram holds the writer lease on
// name until it is closed; Close then writes it back.
func Load(ctx context.Context, store *persistence.Store, name string, optFns ...Option) (h *Histogram, err error) {
	opts := applyOptions(optFns)
	start := time.Now()
	defer func() {
		opts.metricsCollector.RecordLoad(time.Since(start), err)
		opts.logger.LogLoad(ctx, name, opts.residency.String(), err)
	}()

	var lease *persistence.Lease
	if opts.residency == binning.StoreBacked {
		if lease, err = store.Acquire(name); err != nil {
			return nil, err
		}
	}
	release := func() {
		if lease != nil {
			lease.Release()
		}
	}

	b, c, err := open(ctx, store, name, opts.residency)
	if err != nil {
		release()
		return nil, translateError(err)
	}
	h, err = newHistogram(b, c, opts)
	if err != nil {
		_ = b.Close()
		release()
		return nil, err
	}
	h.logger = h.logger.WithName(name)
	if lease != nil {
		h.bound = &binding{store: store, name: name, lease: lease}
	}
	return h, nil
}

// LoadEmpty replaces whatever is stored under name with an empty
// hierarchical histogram of dimension dim and opens it store-backed. It is
// the usual target of MergeFrom.
func LoadEmpty(ctx context.Context, store *persistence.Store, name string, dim int, optFns ...Option) (*Histogram, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrEmptyDomain, dim)
	}
	opts := applyOptions(optFns)

	lease, err := store.Acquire(name)
	if err != nil {
		return nil, err
	}
	h, err := createEmpty(ctx, store, lease, dim, opts)
	if err != nil {
		lease.Release()
		return nil, err
	}
	return h, nil
}

func createEmpty(ctx context.Context, store *persistence.Store, lease *persistence.Lease, dim int, opts options) (*Histogram, error) {
	empty := binning.NewHyperBinning(dim)
	if len(opts.names) > 0 {
		if err := empty.SetNames(opts.names); err != nil {
			return nil, translateError(err)
		}
	}

	w, err := store.NewWriter(ctx, lease)
	if err != nil {
		return nil, err
	}
	if err := writeGeneration(ctx, w, empty, content.New(0)); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		return nil, err
	}
	if err := w.Commit(ctx); err != nil {
		_ = w.Abort(context.WithoutCancel(ctx))
		return nil, err
	}

	b, c, err := open(ctx, store, lease.Name(), binning.StoreBacked)
	if err != nil {
		return nil, err
	}
	h, err := newHistogram(b, c, opts)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	h.logger = h.logger.WithName(lease.Name())
	h.bound = &binding{store: store, name: lease.Name(), lease: lease}
	if err := h.prune(ctx, store, lease); err != nil {
		_ = b.Close()
		return nil, err
	}
	return h, nil
}

// BinningKind returns the kind of binning stored under name.
func BinningKind(ctx context.Context, store *persistence.Store, name string) (binning.Kind, error) {
	r, err := store.OpenForRead(ctx, name)
	if err != nil {
		return binning.KindUnknown, err
	}
	defer r.Close()
	return binning.ReadKind(ctx, r)
}

// EstimateCapacity sums the node and bin counts of the named histograms.
func EstimateCapacity(ctx context.Context, store *persistence.Store, names ...string) (Capacity, error) {
	var c Capacity
	for _, name := range names {
		nodes, err := store.RowCount(ctx, name, binning.TableName)
		if err != nil {
			return Capacity{}, err
		}
		rows, err := store.RowCount(ctx, name, content.TableName)
		if err != nil {
			return Capacity{}, err
		}
		c.Nodes += nodes
		c.Bins += rows - 1
	}
	return c, nil
}

// MergeFrom merges the histogram stored under name into h. The stored
// nodes are paged rather than loaded up front.
func (h *Histogram) MergeFrom(ctx context.Context, store *persistence.Store, name string) error {
	if h.closed {
		return ErrClosed
	}
	b, c, err := open(ctx, store, name, binning.StoreBacked)
	if err != nil {
		return translateError(err)
	}
	defer b.Close()

	h.logger.InfoContext(ctx, "merging stored histogram", "source", name, "bins", b.NumBins())
	return h.Merge(&Histogram{binning: b, content: c, opts: h.opts, logger: h.logger})
}

// LoadMerged loads the first named histogram into memory and merges the
// others into it. The result is memory-resident and not bound to the store.
func LoadMerged(ctx context.Context, store *persistence.Store, names []string, optFns ...Option) (*Histogram, error) {
	if len(names) == 0 {
		return nil, ErrNoInputs
	}
	optFns = append(slices.Clone(optFns), WithResidency(binning.MemoryResident))

	h, err := Load(ctx, store, names[0], optFns...)
	if err != nil {
		return nil, err
	}
	for _, name := range names[1:] {
		if err := h.MergeFrom(ctx, store, name); err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("hyperhist: merge %s: %w", name, err)
		}
	}
	return h, nil
}

// MergeStored creates an empty store-backed histogram under target, sizes
// it with EstimateCapacity and merges every named histogram into it. The
// result is written back when it is closed.
func MergeStored(ctx context.Context, store *persistence.Store, target string, names []string, optFns ...Option) (*Histogram, error) {
	if len(names) == 0 {
		return nil, ErrNoInputs
	}
	if slices.Contains(names, target) {
		return nil, fmt.Errorf("hyperhist: merge target %q is also an input", target)
	}

	r, err := store.OpenForRead(ctx, names[0])
	if err != nil {
		return nil, err
	}
	info, err := binning.ReadInfo(ctx, r)
	_ = r.Close()
	if err != nil {
		return nil, err
	}
	if info.Kind != binning.KindHyper {
		return nil, fmt.Errorf("%w: %s", ErrNotHierarchical, info.Kind)
	}

	capacity, err := EstimateCapacity(ctx, store, names...)
	if err != nil {
		return nil, err
	}
	h, err := LoadEmpty(ctx, store, target, info.Dimension, optFns...)
	if err != nil {
		return nil, err
	}
	h.logger.InfoContext(ctx, "merging stored histograms", "inputs", len(names), "estimated_bins", capacity.Bins)
	h.Reserve(capacity)

	for _, name := range names {
		if err := h.MergeFrom(ctx, store, name); err != nil {
			h.bound.lease.Release()
			_ = h.binning.Close()
			h.closed = true
			return nil, fmt.Errorf("hyperhist: merge %s: %w", name, err)
		}
	}
	return h, nil
}
