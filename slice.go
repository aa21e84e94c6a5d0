package hyperhist

import (
	"fmt"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/content"
	"github.com/hupe1980/hyperhist/geom"
)

// Slice returns the cross-section of h at dims[i] == vals[i]. The result has
// Dimension()-len(dims) dimensions and one bin for every bin of h whose
// region meets the hyperplane. Contents and errors are copied unscaled and
// the dimension names of the fixed dimensions are dropped. The result is
// memory-resident and has no overflow content.
func (h *Histogram) Slice(dims []int, vals []float64) (*Histogram, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if err := h.checkSlice(dims, vals); err != nil {
		return nil, err
	}

	at := make([]float64, h.Dimension())
	for i, d := range dims {
		at[d] = vals[i]
	}
	p := geom.Point{Coords: at}

	out := binning.NewHyperBinning(h.Dimension() - len(dims))
	var keep []int
	for bin := range h.NumBins() {
		r, err := h.binning.BinRegion(bin)
		if err != nil {
			return nil, translateError(err)
		}
		limits, err := h.binning.BinLimits(bin)
		if err != nil {
			return nil, translateError(err)
		}
		sliced := r.SliceWithin(p, dims, limits)
		if sliced.Empty() {
			continue
		}
		if _, err := out.AddBin(sliced); err != nil {
			return nil, translateError(err)
		}
		keep = append(keep, bin)
	}
	if err := out.SetNames(h.Names().Drop(dims)); err != nil {
		return nil, translateError(err)
	}

	c := content.New(len(keep))
	for i, bin := range keep {
		c.SetContent(i, h.content.Content(bin))
		c.SetSumW2(i, h.content.SumW2(bin))
	}
	return &Histogram{
		binning: out,
		content: c,
		opts:    h.opts,
		logger:  h.opts.logger.WithDimension(out.Dimension()),
	}, nil
}

// SliceAt fixes a single dimension.
func (h *Histogram) SliceAt(dim int, val float64) (*Histogram, error) {
	return h.Slice([]int{dim}, []float64{val})
}

// Slice2D keeps dimensions x and y and fixes every other dimension at the
// matching coordinate of at.
func (h *Histogram) Slice2D(x, y int, at geom.Point) (*Histogram, error) {
	if at.Dimension() != h.Dimension() {
		return nil, &DimensionMismatchError{Expected: h.Dimension(), Actual: at.Dimension()}
	}
	if x < 0 || y < 0 || x >= h.Dimension() || y >= h.Dimension() {
		return nil, fmt.Errorf("%w: dimensions %d, %d not in [0, %d)", ErrInvalidSlice, x, y, h.Dimension())
	}
	if x == y {
		return nil, fmt.Errorf("%w: dimensions %d and %d must differ", ErrInvalidSlice, x, y)
	}
	var (
		dims []int
		vals []float64
	)
	for d := range h.Dimension() {
		if d == x || d == y {
			continue
		}
		dims = append(dims, d)
		vals = append(vals, at.Coords[d])
	}
	return h.Slice(dims, vals)
}

func (h *Histogram) checkSlice(dims []int, vals []float64) error {
	if len(dims) != len(vals) {
		return fmt.Errorf("%w: %d dimensions but %d values", ErrInvalidSlice, len(dims), len(vals))
	}
	if len(dims) >= h.Dimension() {
		return fmt.Errorf("%w: cannot fix %d of %d dimensions", ErrInvalidSlice, len(dims), h.Dimension())
	}
	seen := make([]bool, h.Dimension())
	for _, d := range dims {
		if d < 0 || d >= h.Dimension() {
			return fmt.Errorf("%w: dimension %d not in [0, %d)", ErrInvalidSlice, d, h.Dimension())
		}
		if seen[d] {
			return fmt.Errorf("%w: dimension %d fixed twice", ErrInvalidSlice, d)
		}
		seen[d] = true
	}
	return nil
}
