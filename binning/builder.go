package binning

import (
	"github.com/hupe1980/hyperhist/geom"
)

// Builder constructs a binning over domain from a point set. Adaptive
// partition strategies implement this interface.
type Builder interface {
	Build(domain geom.Box, points geom.PointSet, opts BuildOptions) (Binning, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(domain geom.Box, points geom.PointSet, opts BuildOptions) (Binning, error)

// Build implements Builder.
func (f BuilderFunc) Build(domain geom.Box, points geom.PointSet, opts BuildOptions) (Binning, error) {
	return f(domain, points, opts)
}

// BuildOptions bundles the settings a Builder may honour.
type BuildOptions struct {
	// StartDimension is the first dimension considered for splitting.
	StartDimension int

	// BinningDimensions restricts splitting to these dimensions. Empty means all.
	BinningDimensions []int

	// RandomSeed seeds randomised strategies.
	RandomSeed int64

	// MinBinWidths holds one minimum width per dimension. A single entry
	// applies to every dimension.
	MinBinWidths []float64

	// MinBinContent is the minimum content a bin must keep.
	MinBinContent float64

	// MinShadowBinContent is the minimum content of the shadow set a bin
	// must keep.
	MinShadowBinContent float64

	// UseWeights counts points by their first weight instead of by one.
	UseWeights bool

	// ShadowPoints is a secondary set used to validate candidate splits.
	ShadowPoints geom.PointSet

	// Empty asks for the binning only; the points are not filled into the
	// resulting histogram.
	Empty bool
}

// BuildOption configures BuildOptions.
type BuildOption func(*BuildOptions)

// NewBuildOptions applies optFns to the defaults.
func NewBuildOptions(optFns ...BuildOption) BuildOptions {
	var o BuildOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// MinBinWidth returns the minimum width in dimension d.
func (o BuildOptions) MinBinWidth(d int) float64 {
	switch {
	case len(o.MinBinWidths) == 0:
		return 0
	case len(o.MinBinWidths) == 1:
		return o.MinBinWidths[0]
	case d < len(o.MinBinWidths):
		return o.MinBinWidths[d]
	default:
		return 0
	}
}

// Dimensions returns the dimensions to split, rotated to begin at
// StartDimension when it is among them.
func (o BuildOptions) Dimensions(dim int) []int {
	dims := o.BinningDimensions
	if len(dims) == 0 {
		dims = make([]int, dim)
		for i := range dims {
			dims[i] = i
		}
	}
	valid := make([]int, 0, len(dims))
	for _, d := range dims {
		if d >= 0 && d < dim {
			valid = append(valid, d)
		}
	}
	for i, d := range valid {
		if d == o.StartDimension {
			return append(valid[i:len(valid):len(valid)], valid[:i]...)
		}
	}
	return valid
}

// WithStartDimension sets the first dimension considered for splitting.
func WithStartDimension(d int) BuildOption {
	return func(o *BuildOptions) { o.StartDimension = d }
}

// WithBinningDimensions restricts splitting to dims.
func WithBinningDimensions(dims ...int) BuildOption {
	return func(o *BuildOptions) { o.BinningDimensions = dims }
}

// WithRandomSeed sets the seed of randomised strategies.
func WithRandomSeed(seed int64) BuildOption {
	return func(o *BuildOptions) { o.RandomSeed = seed }
}

// WithMinBinWidth sets one minimum width for every dimension.
func WithMinBinWidth(w float64) BuildOption {
	return func(o *BuildOptions) { o.MinBinWidths = []float64{w} }
}

// WithMinBinWidths sets per-dimension minimum widths.
func WithMinBinWidths(ws ...float64) BuildOption {
	return func(o *BuildOptions) { o.MinBinWidths = ws }
}

// WithMinBinContent sets the minimum bin content.
func WithMinBinContent(c float64) BuildOption {
	return func(o *BuildOptions) { o.MinBinContent = c }
}

// WithMinShadowBinContent sets the minimum shadow content.
func WithMinShadowBinContent(c float64) BuildOption {
	return func(o *BuildOptions) { o.MinShadowBinContent = c }
}

// WithWeights counts points by their first weight.
func WithWeights(use bool) BuildOption {
	return func(o *BuildOptions) { o.UseWeights = use }
}

// WithShadowData sets the shadow point set.
func WithShadowData(points geom.PointSet) BuildOption {
	return func(o *BuildOptions) { o.ShadowPoints = points }
}

// WithEmpty builds the binning without filling the points.
func WithEmpty() BuildOption {
	return func(o *BuildOptions) { o.Empty = true }
}
