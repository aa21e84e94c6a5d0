package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/hyperhist/geom"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformPoints generates num points spread uniformly over domain.
// Uses a single backing array for the coordinates.
func (r *RNG) UniformPoints(num int, domain geom.Box) geom.PointSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := domain.Dimension()
	data := make([]float64, num*dim)
	points := make(geom.PointSet, num)

	for i := range num {
		coords := data[i*dim : (i+1)*dim]
		for d := range coords {
			coords[d] = domain.Min(d) + r.rand.Float64()*domain.Width(d)
		}
		points[i] = geom.Point{Coords: coords}
	}

	return points
}

// WeightedPoints is UniformPoints with a weight in [minW, maxW) per point.
func (r *RNG) WeightedPoints(num int, domain geom.Box, minW, maxW float64) geom.PointSet {
	points := r.UniformPoints(num, domain)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range points {
		points[i].Weights = []float64{minW + r.rand.Float64()*(maxW-minW)}
	}
	return points
}

// GaussianPoints generates points from a normal distribution around mean
// with the same sigma in every dimension. Points outside domain are
// clamped onto its boundary.
func (r *RNG) GaussianPoints(num int, domain geom.Box, mean geom.Point, sigma float64) geom.PointSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := domain.Dimension()
	points := make(geom.PointSet, num)
	for i := range num {
		coords := make([]float64, dim)
		for d := range coords {
			coords[d] = clamp(mean.Coords[d]+r.rand.NormFloat64()*sigma, domain.Min(d), domain.Max(d))
		}
		points[i] = geom.Point{Coords: coords}
	}
	return points
}

// ClusteredPoints generates points around clusters random centres drawn
// uniformly from domain. Useful for exercising adaptive binnings.
func (r *RNG) ClusteredPoints(num, clusters int, domain geom.Box, spread float64) geom.PointSet {
	// UniformPoints takes the lock itself.
	centres := r.UniformPoints(clusters, domain)

	r.mu.Lock()
	defer r.mu.Unlock()

	dim := domain.Dimension()
	points := make(geom.PointSet, num)
	for i := range num {
		c := centres[i%clusters]
		coords := make([]float64, dim)
		for d := range coords {
			coords[d] = clamp(c.Coords[d]+r.rand.NormFloat64()*spread, domain.Min(d), domain.Max(d))
		}
		points[i] = geom.Point{Coords: coords}
	}
	return points
}

func clamp(x, lo, hi float64) float64 {
	return min(max(x, lo), hi)
}

// UnitBox returns the box [0, 1)^dim.
func UnitBox(dim int) geom.Box {
	low := make([]float64, dim)
	high := make([]float64, dim)
	for d := range high {
		high[d] = 1
	}
	return geom.MustBox(low, high)
}
