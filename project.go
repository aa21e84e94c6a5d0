package hyperhist

import (
	"fmt"

	"github.com/hupe1980/hyperhist/fixedhist"
	"github.com/hupe1980/hyperhist/geom"
)

// Project redistributes the contents onto nBins equal-width bins along
// dimension dim. The axis spans the limits of the binning in dim and is
// named after that dimension.
//
// Each box of a bin's region gets a share of the bin content proportional
// to its volume. The share is split over the target bins by the fraction of
// the box width each one covers. The projection carries no errors.
func (h *Histogram) Project(dim, nBins int) (*fixedhist.Hist1D, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if dim < 0 || dim >= h.Dimension() {
		return nil, fmt.Errorf("%w: dimension %d not in [0, %d)", ErrInvalidProjection, dim, h.Dimension())
	}
	limits := h.Limits()
	out, err := fixedhist.New(h.Names().Name(dim), nBins, limits.Min(dim), limits.Max(dim))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProjection, err)
	}

	for bin := range h.NumBins() {
		r, err := h.binning.BinRegion(bin)
		if err != nil {
			return nil, translateError(err)
		}
		if r.Empty() {
			continue
		}
		c := h.content.Content(bin)
		vol := r.Volume()
		for _, b := range r.Boxes() {
			share := c / float64(r.Len())
			if vol > 0 {
				share = c * b.Volume() / vol
			}
			projectBox(out, b, dim, share)
		}
	}
	out.ResetErrors()
	return out, nil
}

// ProjectAll projects onto every dimension in turn.
func (h *Histogram) ProjectAll(nBins int) ([]*fixedhist.Hist1D, error) {
	out := make([]*fixedhist.Hist1D, h.Dimension())
	for d := range out {
		p, err := h.Project(d, nBins)
		if err != nil {
			return nil, err
		}
		out[d] = p
	}
	return out, nil
}

func projectBox(out *fixedhist.Hist1D, b geom.Box, dim int, share float64) {
	lo, hi := b.Min(dim), b.Max(dim)
	lowBin, highBin := out.FindBin(lo), out.FindBin(hi)
	if lowBin == highBin {
		out.Fill(lo, share)
		return
	}

	width := hi - lo
	out.Fill(lo, share*(out.BinUpEdge(lowBin)-lo)/width)
	out.Fill(hi, share*(hi-out.BinLowEdge(highBin))/width)
	for bin := lowBin + 1; bin < highBin; bin++ {
		out.Fill(out.BinCenter(bin), share*(out.BinUpEdge(bin)-out.BinLowEdge(bin))/width)
	}
}
