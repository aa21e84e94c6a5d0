package geom

import (
	"fmt"
	"slices"
)

// Point is a coordinate in D-dimensional space with an optional list of
// weights. The number of weights is independent of the dimension.
type Point struct {
	Coords  []float64
	Weights []float64
}

// NewPoint returns a point with the given coordinates and no weights.
func NewPoint(coords ...float64) Point {
	return Point{Coords: slices.Clone(coords)}
}

// NewWeightedPoint returns a point carrying the given weights.
func NewWeightedPoint(coords []float64, weights ...float64) Point {
	return Point{Coords: slices.Clone(coords), Weights: slices.Clone(weights)}
}

// Dimension returns the number of coordinates.
func (p Point) Dimension() int { return len(p.Coords) }

// At returns the i-th coordinate.
func (p Point) At(i int) float64 { return p.Coords[i] }

// NumWeights returns the number of weights carried by the point.
func (p Point) NumWeights() int { return len(p.Weights) }

// Weight returns the i-th weight, or 1 if the point carries fewer weights.
func (p Point) Weight(i int) float64 {
	if i < 0 || i >= len(p.Weights) {
		return 1
	}
	return p.Weights[i]
}

// WithWeights returns a copy of p carrying the given weights.
func (p Point) WithWeights(weights ...float64) Point {
	return Point{Coords: slices.Clone(p.Coords), Weights: slices.Clone(weights)}
}

// Clone returns a deep copy.
func (p Point) Clone() Point {
	return Point{Coords: slices.Clone(p.Coords), Weights: slices.Clone(p.Weights)}
}

// Drop returns the point with the given dimensions removed. Weights are kept.
func (p Point) Drop(dims []int) Point {
	out := Point{Coords: make([]float64, 0, len(p.Coords)), Weights: slices.Clone(p.Weights)}
	for i, c := range p.Coords {
		if !slices.Contains(dims, i) {
			out.Coords = append(out.Coords, c)
		}
	}
	return out
}

func (p Point) String() string {
	if len(p.Weights) == 0 {
		return fmt.Sprintf("%v", p.Coords)
	}
	return fmt.Sprintf("%v w=%v", p.Coords, p.Weights)
}

// PointSet is an ordered collection of points of equal dimension.
type PointSet []Point

// Dimension returns the dimension of the first point, or 0 for an empty set.
func (ps PointSet) Dimension() int {
	if len(ps) == 0 {
		return 0
	}
	return ps[0].Dimension()
}

// Validate checks that every point has dimension dim.
func (ps PointSet) Validate(dim int) error {
	for i, p := range ps {
		if p.Dimension() != dim {
			return fmt.Errorf("point %d: %w", i, &DimensionError{Expected: dim, Actual: p.Dimension()})
		}
	}
	return nil
}

// TotalWeight returns the sum of the first weight of each point.
func (ps PointSet) TotalWeight() float64 {
	var sum float64
	for _, p := range ps {
		sum += p.Weight(0)
	}
	return sum
}
