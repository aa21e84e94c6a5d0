package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
)

func TestOf(t *testing.T) {
	domain := geom.MustBox([]float64{0, 0}, []float64{10, 10})
	points := geom.PointSet{geom.NewPoint(1, 1), geom.NewPoint(1, 8), geom.NewPoint(8, 8), geom.NewPoint(30, 30)}
	h, err := hyperhist.Build(domain, points, binning.GridBuilder{Depth: 2}, binning.NewBuildOptions(),
		hyperhist.WithNames("x", "y"))
	require.NoError(t, err)

	s, err := Of(h)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Dimension)
	assert.Equal(t, []string{"x", "y"}, s.Names)
	assert.Equal(t, 4, s.Bins)
	assert.Equal(t, 7, s.Nodes)
	assert.Equal(t, 1, s.EmptyBins)
	assert.Equal(t, 3.0, s.Integral)
	assert.Equal(t, 1.0, s.Overflow)
	assert.InDelta(t, 0.75, s.Content.Mean, 1e-9)
	assert.InDelta(t, 25, s.Volume.Mean, 1e-9)
	assert.Len(t, s.Density.Quantiles, len(Quantiles))
}

func TestOfEmpty(t *testing.T) {
	h, err := hyperhist.New(binning.NewHyperBinning(2))
	require.NoError(t, err)

	s, err := Of(h)
	require.NoError(t, err)

	assert.Zero(t, s.Bins)
	assert.Nil(t, s.Content.Quantiles)
}
