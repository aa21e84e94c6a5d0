package geom

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvertedBox is returned when a box has low > high in some dimension.
var ErrInvertedBox = errors.New("geom: box low corner exceeds high corner")

// DimensionError reports a dimensionality mismatch.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("geom: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Box is an axis-aligned box given by its low and high corners.
// Low[d] <= High[d] holds in every dimension.
type Box struct {
	Low  Point
	High Point
}

// NewBox validates and returns the box spanned by low and high.
func NewBox(low, high []float64) (Box, error) {
	if len(low) != len(high) {
		return Box{}, &DimensionError{Expected: len(low), Actual: len(high)}
	}
	for d := range low {
		if low[d] > high[d] {
			return Box{}, fmt.Errorf("%w: dimension %d: %g > %g", ErrInvertedBox, d, low[d], high[d])
		}
	}
	return Box{Low: NewPoint(low...), High: NewPoint(high...)}, nil
}

// MustBox is like NewBox but panics on invalid input.
func MustBox(low, high []float64) Box {
	b, err := NewBox(low, high)
	if err != nil {
		panic(err)
	}
	return b
}

// Dimension returns the dimension of the box.
func (b Box) Dimension() int { return len(b.Low.Coords) }

// Min returns the low edge in dimension d.
func (b Box) Min(d int) float64 { return b.Low.Coords[d] }

// Max returns the high edge in dimension d.
func (b Box) Max(d int) float64 { return b.High.Coords[d] }

// Width returns the extent in dimension d.
func (b Box) Width(d int) float64 { return b.High.Coords[d] - b.Low.Coords[d] }

// Volume is the product of the widths. Degenerate boxes have volume 0.
func (b Box) Volume() float64 {
	if b.Dimension() == 0 {
		return 0
	}
	v := 1.0
	for d := range b.Low.Coords {
		v *= b.Width(d)
	}
	return v
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	c := make([]float64, b.Dimension())
	for d := range c {
		c[d] = 0.5 * (b.Low.Coords[d] + b.High.Coords[d])
	}
	return Point{Coords: c}
}

// Contains reports whether low <= x < high in every dimension.
func (b Box) Contains(p Point) bool {
	if p.Dimension() != b.Dimension() {
		return false
	}
	for d, x := range p.Coords {
		if x < b.Low.Coords[d] || x >= b.High.Coords[d] {
			return false
		}
	}
	return true
}

// ContainsWithin is Contains with the upper edge made inclusive in every
// dimension where it coincides with the upper edge of limits.
func (b Box) ContainsWithin(p Point, limits Box) bool {
	if p.Dimension() != b.Dimension() || limits.Dimension() != b.Dimension() {
		return false
	}
	for d, x := range p.Coords {
		if !b.containsCoord(d, x, limits) {
			return false
		}
	}
	return true
}

func (b Box) containsCoord(d int, x float64, limits Box) bool {
	lo, hi := b.Low.Coords[d], b.High.Coords[d]
	if x < lo {
		return false
	}
	if x < hi {
		return true
	}
	return x == hi && hi == limits.High.Coords[d] && lo < hi
}

// Intersects reports whether the interiors of b and o overlap.
func (b Box) Intersects(o Box) bool {
	if b.Dimension() != o.Dimension() {
		return false
	}
	for d := range b.Low.Coords {
		if b.Low.Coords[d] >= o.High.Coords[d] || o.Low.Coords[d] >= b.High.Coords[d] {
			return false
		}
	}
	return true
}

// Union returns the smallest box covering both b and o.
func (b Box) Union(o Box) Box {
	if b.Dimension() == 0 {
		return o.Clone()
	}
	if o.Dimension() == 0 {
		return b.Clone()
	}
	low := make([]float64, b.Dimension())
	high := make([]float64, b.Dimension())
	for d := range low {
		low[d] = math.Min(b.Low.Coords[d], o.Low.Coords[d])
		high[d] = math.Max(b.High.Coords[d], o.High.Coords[d])
	}
	return Box{Low: Point{Coords: low}, High: Point{Coords: high}}
}

// Equal reports whether both corners match exactly.
func (b Box) Equal(o Box) bool {
	return slices.Equal(b.Low.Coords, o.Low.Coords) && slices.Equal(b.High.Coords, o.High.Coords)
}

// Clone returns a deep copy.
func (b Box) Clone() Box {
	return Box{Low: NewPoint(b.Low.Coords...), High: NewPoint(b.High.Coords...)}
}

// Drop returns the box with the given dimensions removed.
func (b Box) Drop(dims []int) Box {
	return Box{Low: Point{Coords: b.Low.Drop(dims).Coords}, High: Point{Coords: b.High.Drop(dims).Coords}}
}

func (b Box) String() string {
	return fmt.Sprintf("[%v, %v]", b.Low.Coords, b.High.Coords)
}
