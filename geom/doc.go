// Package geom provides the geometric primitives of hyperhist: points with
// optional weights, axis-aligned boxes and regions made of disjoint boxes.
//
// Containment is half-open: a coordinate x lies inside [low, high) when
// low <= x < high. The ContainsWithin variants additionally accept x == high
// where high is the upper edge of the enclosing limits, so that every point
// of a closed domain belongs to exactly one box of a partition.
package geom
