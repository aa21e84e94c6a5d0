// Package fixedhist implements a one-dimensional histogram with fixed-width
// bins, used as the target of histogram projections.
package fixedhist

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidRange is returned for an empty or inverted axis.
var ErrInvalidRange = errors.New("fixedhist: invalid axis range")

// Underflow is the bin index reported for values below the axis.
const Underflow = -1

// Hist1D has n equal-width bins over [low, high). Values below low fall into
// Underflow, values at or above high into the overflow bin n.
type Hist1D struct {
	name      string
	low, high float64
	width     float64
	content   []float64 // n bins, then underflow, then overflow
	sumW2     []float64
}

// New returns an empty histogram with nBins bins over [low, high).
func New(name string, nBins int, low, high float64) (*Hist1D, error) {
	if nBins <= 0 {
		return nil, fmt.Errorf("%w: %d bins", ErrInvalidRange, nBins)
	}
	if !(high > low) || math.IsInf(high-low, 0) {
		return nil, fmt.Errorf("%w: [%g, %g)", ErrInvalidRange, low, high)
	}
	return &Hist1D{
		name:    name,
		low:     low,
		high:    high,
		width:   (high - low) / float64(nBins),
		content: make([]float64, nBins+2),
		sumW2:   make([]float64, nBins+2),
	}, nil
}

// Name returns the axis label.
func (h *Hist1D) Name() string { return h.name }

// NumBins returns the number of in-range bins.
func (h *Hist1D) NumBins() int { return len(h.content) - 2 }

// Low returns the lower axis edge.
func (h *Hist1D) Low() float64 { return h.low }

// High returns the upper axis edge.
func (h *Hist1D) High() float64 { return h.high }

// BinWidth returns the width of every in-range bin.
func (h *Hist1D) BinWidth() float64 { return h.width }

// FindBin returns the bin of x: Underflow below the axis, NumBins() at or
// above its upper edge.
func (h *Hist1D) FindBin(x float64) int {
	switch {
	case x < h.low:
		return Underflow
	case x >= h.high:
		return h.NumBins()
	}
	b := int((x - h.low) / h.width)
	// guard against rounding at the last edge
	if b >= h.NumBins() {
		b = h.NumBins() - 1
	}
	return b
}

// BinLowEdge returns the lower edge of bin b. The underflow bin starts at
// -Inf and the overflow bin at High().
func (h *Hist1D) BinLowEdge(b int) float64 {
	switch {
	case b <= Underflow:
		return math.Inf(-1)
	case b >= h.NumBins():
		return h.high
	}
	return h.low + float64(b)*h.width
}

// BinUpEdge returns the upper edge of bin b. The underflow bin ends at
// Low() and the overflow bin at +Inf.
func (h *Hist1D) BinUpEdge(b int) float64 {
	switch {
	case b <= Underflow:
		return h.low
	case b >= h.NumBins():
		return math.Inf(1)
	}
	if b == h.NumBins()-1 {
		return h.high
	}
	return h.low + float64(b+1)*h.width
}

// BinCenter returns the centre of an in-range bin.
func (h *Hist1D) BinCenter(b int) float64 {
	return h.low + (float64(b)+0.5)*h.width
}

func (h *Hist1D) slot(b int) int {
	switch {
	case b <= Underflow:
		return h.NumBins()
	case b >= h.NumBins():
		return h.NumBins() + 1
	}
	return b
}

// Fill adds weight w at x and returns the bin it landed in.
func (h *Hist1D) Fill(x, w float64) int {
	b := h.FindBin(x)
	s := h.slot(b)
	h.content[s] += w
	h.sumW2[s] += w * w
	return b
}

// Content returns the content of bin b (Underflow and NumBins() address the
// out-of-range bins).
func (h *Hist1D) Content(b int) float64 { return h.content[h.slot(b)] }

// Error returns sqrt(sumW2) of bin b.
func (h *Hist1D) Error(b int) float64 { return math.Sqrt(h.sumW2[h.slot(b)]) }

// Contents returns a copy of the in-range bin contents.
func (h *Hist1D) Contents() []float64 {
	out := make([]float64, h.NumBins())
	copy(out, h.content)
	return out
}

// Underflow returns the content below the axis.
func (h *Hist1D) Underflow() float64 { return h.content[h.NumBins()] }

// Overflow returns the content at or above the upper edge.
func (h *Hist1D) Overflow() float64 { return h.content[h.NumBins()+1] }

// Integral returns the in-range content.
func (h *Hist1D) Integral() float64 { return floats.Sum(h.content[:h.NumBins()]) }

// ResetErrors zeroes every bin error.
func (h *Hist1D) ResetErrors() { clear(h.sumW2) }
