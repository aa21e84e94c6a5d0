package hyperhist

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/content"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

// Histogram pairs a Binning with its Content Store.
//
// A Histogram is not safe for concurrent use. Independent histograms share
// no mutable state.
type Histogram struct {
	binning binning.Binning
	content *content.Store
	opts    options
	logger  *Logger

	// bound is set for store-backed histograms that own a writer lease.
	bound  *binding
	closed bool
}

type binding struct {
	store *persistence.Store
	name  string
	lease *persistence.Lease
}

// New returns an empty histogram over a copy of b.
func New(b binning.Binning, optFns ...Option) (*Histogram, error) {
	if b == nil {
		return nil, fmt.Errorf("hyperhist: nil binning")
	}
	c, err := b.Clone()
	if err != nil {
		return nil, translateError(err)
	}
	return newHistogram(c, content.New(c.NumBins()), applyOptions(optFns))
}

// Build constructs a binning over domain with builder and fills points
// into it, unless the build options ask for an empty histogram.
func Build(domain geom.Box, points geom.PointSet, builder binning.Builder, buildOpts binning.BuildOptions, optFns ...Option) (*Histogram, error) {
	if builder == nil {
		builder = binning.GridBuilder{}
	}
	b, err := builder.Build(domain, points, buildOpts)
	if err != nil {
		return nil, translateError(err)
	}
	h, err := newHistogram(b, content.New(b.NumBins()), applyOptions(optFns))
	if err != nil {
		return nil, err
	}
	if !buildOpts.Empty {
		if _, err := h.FillSet(points); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func newHistogram(b binning.Binning, c *content.Store, opts options) (*Histogram, error) {
	if len(opts.names) > 0 {
		if err := b.SetNames(opts.names); err != nil {
			return nil, translateError(err)
		}
	}
	return &Histogram{
		binning: b,
		content: c,
		opts:    opts,
		logger:  opts.logger.WithDimension(b.Dimension()),
	}, nil
}

// Binning returns the binning. It must not be modified.
func (h *Histogram) Binning() binning.Binning { return h.binning }

// Dimension returns the number of coordinates of the histogram.
func (h *Histogram) Dimension() int { return h.binning.Dimension() }

// NumBins returns the number of bins. It is also the overflow index.
func (h *Histogram) NumBins() int { return h.binning.NumBins() }

// Residency reports where the nodes of the binning live.
func (h *Histogram) Residency() binning.Residency { return h.binning.Residency() }

// Name returns the store name of a store-backed histogram, or "".
func (h *Histogram) Name() string {
	if h.bound == nil {
		return ""
	}
	return h.bound.name
}

// Names returns the dimension labels.
func (h *Histogram) Names() geom.Names { return h.binning.Names() }

// SetNames sets the dimension labels, one per dimension.
func (h *Histogram) SetNames(names ...string) error {
	return translateError(h.binning.SetNames(names))
}

// Limits returns the bounding box of the binning.
func (h *Histogram) Limits() geom.Box { return h.binning.Limits() }

// Integral returns the total content of all bins, excluding overflow.
func (h *Histogram) Integral() float64 { return h.content.Sum() }

// Overflow returns the content of fills that found no bin.
func (h *Histogram) Overflow() float64 { return h.content.Content(h.content.Overflow()) }

// Contents returns a copy of the bin contents, excluding overflow.
func (h *Histogram) Contents() []float64 { return h.content.Contents() }

func (h *Histogram) checkBin(bin int) error {
	if bin < 0 || bin > h.content.Overflow() {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrBinOutOfRange, bin, h.content.Overflow())
	}
	return nil
}

// BinContent returns the content of bin. NumBins() addresses overflow.
func (h *Histogram) BinContent(bin int) (float64, error) {
	if err := h.checkBin(bin); err != nil {
		return 0, err
	}
	return h.content.Content(bin), nil
}

// SetBinContent overwrites the content of bin.
func (h *Histogram) SetBinContent(bin int, v float64) error {
	if err := h.checkBin(bin); err != nil {
		return err
	}
	h.content.SetContent(bin, v)
	return nil
}

// BinError returns the error of bin, sqrt of its summed squared weights.
func (h *Histogram) BinError(bin int) (float64, error) {
	if err := h.checkBin(bin); err != nil {
		return 0, err
	}
	return h.content.Error(bin), nil
}

// SetBinError sets the error of bin.
func (h *Histogram) SetBinError(bin int, e float64) error {
	if err := h.checkBin(bin); err != nil {
		return err
	}
	h.content.SetError(bin, e)
	return nil
}

// BinRegion returns the region of bin.
func (h *Histogram) BinRegion(bin int) (geom.Region, error) {
	r, err := h.binning.BinRegion(bin)
	return r, translateError(err)
}

// BinVolume returns the volume of the region of bin.
func (h *Histogram) BinVolume(bin int) (float64, error) {
	r, err := h.BinRegion(bin)
	if err != nil {
		return 0, err
	}
	return r.Volume(), nil
}

// Fill adds the first weight of p (1 if it has none) to the bin containing
// p and returns that bin. Points in no bin go to overflow.
func (h *Histogram) Fill(p geom.Point) (int, error) {
	return h.FillWeight(p, p.Weight(0))
}

// FillWeight adds w to the bin containing p and returns that bin.
func (h *Histogram) FillWeight(p geom.Point, w float64) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}
	start := time.Now()
	bin, err := h.binning.BinNum(p)
	if err != nil {
		return bin, translateError(err)
	}
	h.content.Fill(bin, w)

	overflow := 0
	if bin == h.content.Overflow() {
		overflow = 1
	}
	h.opts.metricsCollector.RecordFill(1, overflow, time.Since(start))
	return bin, nil
}

// FillWeightAt adds the i-th weight of p to the bin containing p. It is the
// fill for points carrying one weight per sample set.
func (h *Histogram) FillWeightAt(p geom.Point, i int) (int, error) {
	return h.FillWeight(p, p.Weight(i))
}

// FillSet fills every point with its first weight and returns the bins.
// Dimensions are checked before any fill happens.
func (h *Histogram) FillSet(ps geom.PointSet) ([]int, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if err := ps.Validate(h.Dimension()); err != nil {
		return nil, translateError(err)
	}
	start := time.Now()
	bins, err := h.binning.BinNums(ps)
	if err != nil {
		h.logger.LogFill(context.Background(), len(ps), 0, err)
		return nil, translateError(err)
	}

	overflow := 0
	for i, b := range bins {
		h.content.Fill(b, ps[i].Weight(0))
		if b == h.content.Overflow() {
			overflow++
		}
	}
	h.opts.metricsCollector.RecordFill(len(ps), overflow, time.Since(start))
	h.logger.LogFill(context.Background(), len(ps), overflow, nil)
	return bins, nil
}

// Val returns the content of the bin containing p, or the overflow content
// when no bin does.
func (h *Histogram) Val(p geom.Point) (float64, error) {
	if h.closed {
		return 0, ErrClosed
	}
	start := time.Now()
	bin, err := h.binning.BinNum(p)
	if err != nil {
		return 0, translateError(err)
	}
	h.opts.metricsCollector.RecordLookup(1, time.Since(start))
	return h.content.Content(bin), nil
}

// Vals returns Val for every point.
func (h *Histogram) Vals(ps geom.PointSet) ([]float64, error) {
	if h.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	bins, err := h.binning.BinNums(ps)
	if err != nil {
		return nil, translateError(err)
	}
	out := make([]float64, len(bins))
	for i, b := range bins {
		out[i] = h.content.Content(b)
	}
	h.opts.metricsCollector.RecordLookup(len(ps), time.Since(start))
	return out, nil
}

// Eval implements Function, so a histogram can seed the contents of
// another.
func (h *Histogram) Eval(p geom.Point) (float64, error) { return h.Val(p) }

// Merge appends the bins of other to h. Bins are not reconciled
// spatially: h keeps its bin numbers and other's bins follow. On error
// neither histogram changes.
func (h *Histogram) Merge(other *Histogram) error {
	if other == nil {
		return fmt.Errorf("%w: nil histogram", ErrKindMismatch)
	}
	if h.closed || other.closed {
		return ErrClosed
	}
	start := time.Now()
	before := h.NumBins()

	oc := other.content
	if other == h {
		oc = oc.Clone()
	}
	err := h.binning.Merge(other.binning)
	if err == nil {
		h.content.Append(oc)
	}
	err = translateError(err)

	h.opts.metricsCollector.RecordMerge(h.NumBins(), time.Since(start), err)
	h.logger.LogMerge(context.Background(), h.NumBins(), h.NumBins()-before, err)
	return err
}

// Reserve pre-sizes the binning and content for a bulk merge.
func (h *Histogram) Reserve(c Capacity) {
	h.binning.Reserve(c.Nodes)
	h.content.Reserve(c.Bins)
}

// Function is a scalar function over points.
type Function interface {
	Eval(p geom.Point) (float64, error)
}

// FuncOf adapts an ordinary function to Function.
type FuncOf func(p geom.Point) float64

// Eval implements Function.
func (f FuncOf) Eval(p geom.Point) (float64, error) { return f(p), nil }

// SetContentsFromFunc sets every bin to f evaluated at the volume-weighted
// centre of its region and zeroes the errors. Overflow is left alone. On
// error no bin changes.
func (h *Histogram) SetContentsFromFunc(f Function) error {
	if h.closed {
		return ErrClosed
	}
	vals := make([]float64, h.NumBins())
	for bin := range vals {
		r, err := h.binning.BinRegion(bin)
		if err != nil {
			return translateError(err)
		}
		v, err := f.Eval(r.AverageCenter())
		if err != nil {
			return fmt.Errorf("hyperhist: evaluate bin %d: %w", bin, err)
		}
		vals[bin] = v
	}
	for bin, v := range vals {
		h.content.SetContent(bin, v)
		h.content.SetSumW2(bin, 0)
	}
	return nil
}

// SetContentsFromFunction is SetContentsFromFunc for a plain function.
func (h *Histogram) SetContentsFromFunction(f func(p geom.Point) float64) error {
	return h.SetContentsFromFunc(FuncOf(f))
}

// Clone returns an independent, memory-resident copy that is not bound to
// any store.
func (h *Histogram) Clone() (*Histogram, error) {
	if h.closed {
		return nil, ErrClosed
	}
	b, err := h.binning.Clone()
	if err != nil {
		return nil, translateError(err)
	}
	return &Histogram{
		binning: b,
		content: h.content.Clone(),
		opts:    h.opts,
		logger:  h.logger,
	}, nil
}

// Close releases the histogram. A store-backed histogram first writes its
// nodes and contents as a new generation, commits it and prunes older
// generations; the writer lease is released in any case. Closing twice is
// a no-op.
func (h *Histogram) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.bound == nil {
		return h.binning.Close()
	}
	defer h.bound.lease.Release()
	return h.flushAndClose(context.Background())
}
