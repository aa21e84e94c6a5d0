package geom

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Region is an ordered list of disjoint boxes of equal dimension. It is the
// shape of one bin, possibly fragmented after slicing.
type Region struct {
	dim   int
	boxes []Box
}

// NewRegion returns a region of dimension dim holding the given boxes.
func NewRegion(dim int, boxes ...Box) (Region, error) {
	r := Region{dim: dim, boxes: make([]Box, 0, len(boxes))}
	for _, b := range boxes {
		if err := r.Add(b); err != nil {
			return Region{}, err
		}
	}
	return r, nil
}

// RegionOf returns a single-box region.
func RegionOf(b Box) Region {
	return Region{dim: b.Dimension(), boxes: []Box{b.Clone()}}
}

// Add appends a box.
func (r *Region) Add(b Box) error {
	if b.Dimension() != r.dim {
		return &DimensionError{Expected: r.dim, Actual: b.Dimension()}
	}
	r.boxes = append(r.boxes, b.Clone())
	return nil
}

// Dimension returns the dimension of the region.
func (r Region) Dimension() int { return r.dim }

// Len returns the number of boxes.
func (r Region) Len() int { return len(r.boxes) }

// Empty reports whether the region holds no boxes.
func (r Region) Empty() bool { return len(r.boxes) == 0 }

// Box returns the i-th box.
func (r Region) Box(i int) Box { return r.boxes[i] }

// Boxes returns the boxes. The slice must not be modified.
func (r Region) Boxes() []Box { return r.boxes }

// Volume is the sum of the box volumes.
func (r Region) Volume() float64 {
	var v float64
	for _, b := range r.boxes {
		v += b.Volume()
	}
	return v
}

// Contains reports whether any box contains p (half-open edges).
func (r Region) Contains(p Point) bool {
	for _, b := range r.boxes {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

// ContainsWithin reports whether any box contains p, treating upper edges
// that coincide with the upper edge of limits as inclusive.
func (r Region) ContainsWithin(p Point, limits Box) bool {
	for _, b := range r.boxes {
		if b.ContainsWithin(p, limits) {
			return true
		}
	}
	return false
}

// Limits returns the bounding box. An empty region yields a zero box of the
// region's dimension.
func (r Region) Limits() Box {
	if len(r.boxes) == 0 {
		return Box{Low: Point{Coords: make([]float64, r.dim)}, High: Point{Coords: make([]float64, r.dim)}}
	}
	out := r.boxes[0].Clone()
	for _, b := range r.boxes[1:] {
		out = out.Union(b)
	}
	return out
}

// AverageCenter returns the volume-weighted mean of the box centres. When
// the total volume is zero every box counts equally.
func (r Region) AverageCenter() Point {
	coords := make([]float64, r.dim)
	if len(r.boxes) == 0 {
		return Point{Coords: coords}
	}

	weights := make([]float64, len(r.boxes))
	var total float64
	for i, b := range r.boxes {
		weights[i] = b.Volume()
		total += weights[i]
	}
	if total == 0 {
		weights = nil
	}

	xs := make([]float64, len(r.boxes))
	for d := range coords {
		for i, b := range r.boxes {
			xs[i] = 0.5 * (b.Low.Coords[d] + b.High.Coords[d])
		}
		coords[d] = stat.Mean(xs, weights)
	}
	return Point{Coords: coords}
}

// Slice keeps every box that contains p in the fixed dimensions and drops
// those dimensions from it. Boxes are kept distinct.
func (r Region) Slice(p Point, fixedDims []int) Region {
	return r.slice(p, fixedDims, nil)
}

// SliceWithin is Slice with upper edges that coincide with limits treated
// as inclusive.
func (r Region) SliceWithin(p Point, fixedDims []int, limits Box) Region {
	return r.slice(p, fixedDims, &limits)
}

func (r Region) slice(p Point, fixedDims []int, limits *Box) Region {
	out := Region{dim: r.dim - len(fixedDims)}
	for _, b := range r.boxes {
		keep := true
		for _, d := range fixedDims {
			x := p.Coords[d]
			if limits != nil {
				keep = b.containsCoord(d, x, *limits)
			} else {
				keep = x >= b.Low.Coords[d] && x < b.High.Coords[d]
			}
			if !keep {
				break
			}
		}
		if keep {
			out.boxes = append(out.boxes, b.Drop(fixedDims))
		}
	}
	return out
}

// Validate checks box dimensions and pairwise disjointness.
func (r Region) Validate() error {
	for i, b := range r.boxes {
		if b.Dimension() != r.dim {
			return fmt.Errorf("box %d: %w", i, &DimensionError{Expected: r.dim, Actual: b.Dimension()})
		}
		for j := i + 1; j < len(r.boxes); j++ {
			if b.Intersects(r.boxes[j]) {
				return fmt.Errorf("geom: boxes %d and %d overlap", i, j)
			}
		}
	}
	return nil
}

// Equal reports whether both regions hold the same boxes in the same order.
func (r Region) Equal(o Region) bool {
	return r.dim == o.dim && slices.EqualFunc(r.boxes, o.boxes, Box.Equal)
}

// Clone returns a deep copy.
func (r Region) Clone() Region {
	out := Region{dim: r.dim, boxes: make([]Box, len(r.boxes))}
	for i, b := range r.boxes {
		out.boxes[i] = b.Clone()
	}
	return out
}

func (r Region) String() string {
	parts := make([]string, len(r.boxes))
	for i, b := range r.boxes {
		parts[i] = b.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
