package geom

import (
	"slices"
	"strconv"
)

// Names labels the dimensions of a histogram.
type Names []string

// DefaultNames returns x0..x{dim-1}.
func DefaultNames(dim int) Names {
	n := make(Names, dim)
	for i := range n {
		n[i] = "x" + strconv.Itoa(i)
	}
	return n
}

// Name returns the label of dimension i, falling back to the default label.
func (n Names) Name(i int) string {
	if i >= 0 && i < len(n) && n[i] != "" {
		return n[i]
	}
	return "x" + strconv.Itoa(i)
}

// Drop returns the labels with the given dimensions removed, in order.
func (n Names) Drop(dims []int) Names {
	out := make(Names, 0, len(n))
	for i, s := range n {
		if !slices.Contains(dims, i) {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a copy.
func (n Names) Clone() Names { return slices.Clone(n) }
