package hyperhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/testutil"
)

func TestMergeQuadrants(t *testing.T) {
	a := quadrantsWith(t, 1, 1, 1, 1)
	b := quadrantsWith(t, 0, 0, 0, 0)

	require.NoError(t, a.Merge(b))

	assert.Equal(t, 8, a.NumBins())
	assert.Equal(t, []float64{1, 1, 1, 1, 0, 0, 0, 0}, a.Contents())
	hb, ok := a.Binning().AsHyper()
	require.True(t, ok)
	assert.Len(t, hb.Primaries(), 2)

	for _, p := range []geom.Point{geom.NewPoint(1, 1), geom.NewPoint(9, 9), geom.NewPoint(10, 10)} {
		v, err := a.Val(p)
		require.NoError(t, err)
		assert.Equal(t, 1.0, v)
	}
	assert.Equal(t, 4, b.NumBins(), "other is left alone")
}

func TestMergeKeepsLeftLookups(t *testing.T) {
	rng := testutil.NewRNG(11)
	left := geom.MustBox([]float64{0, 0}, []float64{1, 1})
	right := geom.MustBox([]float64{2, 0}, []float64{3, 1})

	a, err := Build(left, rng.UniformPoints(200, left), binning.GridBuilder{Depth: 4}, binning.NewBuildOptions())
	require.NoError(t, err)
	b, err := Build(right, rng.UniformPoints(200, right), binning.GridBuilder{Depth: 4}, binning.NewBuildOptions())
	require.NoError(t, err)

	probes := rng.UniformPoints(50, left)
	before, err := a.Vals(probes)
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))

	after, err := a.Vals(probes)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.InDelta(t, 400, a.Integral(), 1e-9)
}

// disjoint returns a single-bin histogram over [20,30]x[0,10] holding c.
func disjoint(t *testing.T, c float64) *Histogram {
	t.Helper()
	b := binning.NewHyperBinning(2)
	_, err := b.AddBin(geom.RegionOf(geom.MustBox([]float64{20, 0}, []float64{30, 10})))
	require.NoError(t, err)
	h, err := New(b)
	require.NoError(t, err)
	require.NoError(t, h.SetBinContent(0, c))
	return h
}

func TestMergeKeepsUpperEdgeOwnership(t *testing.T) {
	a := quadrantsWith(t, 1, 2, 3, 4)
	edges := geom.PointSet{geom.NewPoint(10, 5), geom.NewPoint(10, 10), geom.NewPoint(10, 0), geom.NewPoint(0, 10)}
	before, err := a.binning.BinNums(edges)
	require.NoError(t, err)

	require.NoError(t, a.Merge(disjoint(t, 7)))

	after, err := a.binning.BinNums(edges)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	v, err := a.Val(geom.NewPoint(10, 5))
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	v, err = a.Val(geom.NewPoint(30, 10))
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
	bin, err := a.Fill(geom.NewPoint(15, 5))
	require.NoError(t, err)
	assert.Equal(t, a.NumBins(), bin, "the gap between the domains overflows")

	bin, err = a.Fill(geom.NewPoint(10, 5))
	require.NoError(t, err)
	assert.Equal(t, 3, bin)
	assert.Equal(t, 1.0, a.Overflow())
}

func TestSliceAfterMergeKeepsUpperEdge(t *testing.T) {
	a := quadrantsWith(t, 1, 2, 3, 4)
	require.NoError(t, a.Merge(disjoint(t, 7)))

	s, err := a.SliceAt(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, s.Contents())

	s, err = a.SliceAt(0, 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, s.Contents())
}

func TestMergeDimensionMismatch(t *testing.T) {
	a := quadrantsWith(t, 1, 2, 3, 4)
	line := binning.NewHyperBinning(1)
	_, err := line.AddBin(geom.RegionOf(geom.MustBox([]float64{0}, []float64{1})))
	require.NoError(t, err)
	b, err := New(line)
	require.NoError(t, err)

	err = a.Merge(b)

	var dm *DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, a.NumBins())
	assert.Equal(t, []float64{1, 2, 3, 4}, a.Contents())
}

func TestMergeNil(t *testing.T) {
	a := quadrants(t)
	assert.ErrorIs(t, a.Merge(nil), ErrKindMismatch)
}

func TestMergeSelf(t *testing.T) {
	a := quadrantsWith(t, 1, 2, 3, 4)

	require.NoError(t, a.Merge(a))

	assert.Equal(t, []float64{1, 2, 3, 4, 1, 2, 3, 4}, a.Contents())
}

func TestMergeMetrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	a := quadrants(t, WithMetricsCollector(mc))

	require.NoError(t, a.Merge(quadrants(t)))
	require.Error(t, a.Merge(nil))

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.MergeCount)
	assert.Zero(t, stats.MergeErrors, "nil is rejected before merging")
}
