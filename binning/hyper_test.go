package binning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/geom"
)

func box(lo, hi []float64) geom.Region {
	return geom.RegionOf(geom.MustBox(lo, hi))
}

// twoLevel builds [0,4) split into [0,2) and [2,4), the upper half split
// again at 3.
func twoLevel(t *testing.T) *HyperBinning {
	t.Helper()
	h := NewHyperBinning(1)
	_, err := h.AddNode(box([]float64{0}, []float64{4}), []int{1, 2})
	require.NoError(t, err)
	_, err = h.AddNode(box([]float64{0}, []float64{2}), nil)
	require.NoError(t, err)
	_, err = h.AddNode(box([]float64{2}, []float64{4}), []int{3, 4})
	require.NoError(t, err)
	_, err = h.AddNode(box([]float64{2}, []float64{3}), nil)
	require.NoError(t, err)
	_, err = h.AddNode(box([]float64{3}, []float64{4}), nil)
	require.NoError(t, err)
	require.NoError(t, h.SetPrimary(0))
	require.NoError(t, h.Validate())
	return h
}

func TestHyperBinNum(t *testing.T) {
	h := twoLevel(t)
	require.Equal(t, 3, h.NumBins())

	tests := []struct {
		x   float64
		bin int
	}{
		{0, 0}, {1.999, 0}, {2, 1}, {2.5, 1}, {3, 2}, {4, 2}, {4.01, 3}, {-0.1, 3},
	}
	for _, tt := range tests {
		bin, err := h.BinNum(geom.NewPoint(tt.x))
		require.NoError(t, err)
		assert.Equal(t, tt.bin, bin, "x=%v", tt.x)
	}

	_, err := h.BinNum(geom.NewPoint(1, 1))
	var dm *DimensionMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestHyperBinRegionAndNode(t *testing.T) {
	h := twoLevel(t)

	r, err := h.BinRegion(1)
	require.NoError(t, err)
	assert.Equal(t, box([]float64{2}, []float64{3}), r)

	id, err := h.BinNode(2)
	require.NoError(t, err)
	assert.Equal(t, 4, id)
	assert.True(t, h.IsPrimary(0))
	assert.False(t, h.IsPrimary(2))
	assert.Equal(t, []int{0}, h.Primaries())

	_, err = h.BinRegion(3)
	assert.ErrorIs(t, err, ErrBinOutOfRange)
	_, err = h.Node(9)
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
}

func TestHyperEmptyBinning(t *testing.T) {
	h := NewHyperBinning(2)

	bin, err := h.BinNum(geom.NewPoint(0, 0))
	require.NoError(t, err)
	assert.Zero(t, bin)
	assert.Equal(t, 2, h.Limits().Dimension())
}

func TestHyperAddBinLimits(t *testing.T) {
	h := NewHyperBinning(2)
	_, err := h.AddBin(box([]float64{0, 0}, []float64{1, 1}))
	require.NoError(t, err)
	bin, err := h.AddBin(box([]float64{2, -1}, []float64{3, 0.5}))
	require.NoError(t, err)

	assert.Equal(t, 1, bin)
	assert.Equal(t, geom.MustBox([]float64{0, -1}, []float64{3, 1}), h.Limits())
	assert.Len(t, h.Primaries(), 2)

	_, err = h.AddBin(box([]float64{0}, []float64{1}))
	var dm *DimensionMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestHyperMerge(t *testing.T) {
	a := twoLevel(t)
	b := twoLevel(t)

	require.NoError(t, a.Merge(b))

	assert.Equal(t, 6, a.NumBins())
	assert.Equal(t, 10, a.NumNodes())
	assert.Equal(t, []int{0, 5}, a.Primaries())
	require.NoError(t, a.Validate())

	n, err := a.Node(7)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, n.Links)
	id, err := a.BinNode(4)
	require.NoError(t, err)
	assert.Equal(t, 8, id)

	bin, err := a.BinNum(geom.NewPoint(2.5))
	require.NoError(t, err)
	assert.Equal(t, 1, bin, "the first primary wins")
	assert.Equal(t, 3, b.NumBins())
}

func TestHyperMergeKeepsDomainLimits(t *testing.T) {
	a := twoLevel(t)
	b := NewHyperBinning(1)
	_, err := b.AddBin(box([]float64{10}, []float64{12}))
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))

	for _, tt := range []struct {
		x   float64
		bin int
	}{
		{4, 2}, {3.5, 2}, {12, 3}, {10, 3}, {6, 4}, {12.5, 4},
	} {
		bin, err := a.BinNum(geom.NewPoint(tt.x))
		require.NoError(t, err)
		assert.Equal(t, tt.bin, bin, "x=%v", tt.x)
	}

	lim, err := a.BinLimits(2)
	require.NoError(t, err)
	assert.Equal(t, geom.MustBox([]float64{0}, []float64{4}), lim)
	lim, err = a.BinLimits(3)
	require.NoError(t, err)
	assert.Equal(t, geom.MustBox([]float64{10}, []float64{12}), lim)
	assert.Equal(t, geom.MustBox([]float64{0}, []float64{12}), a.Limits())

	c, err := a.CloneHyper()
	require.NoError(t, err)
	bin, err := c.BinNum(geom.NewPoint(4))
	require.NoError(t, err)
	assert.Equal(t, 2, bin)
}

func TestHyperMergeNested(t *testing.T) {
	inner := NewHyperBinning(1)
	_, err := inner.AddBin(box([]float64{10}, []float64{12}))
	require.NoError(t, err)
	outer := NewHyperBinning(1)
	_, err = outer.AddBin(box([]float64{5}, []float64{6}))
	require.NoError(t, err)
	require.NoError(t, outer.Merge(inner))

	a := twoLevel(t)
	require.NoError(t, a.Merge(outer))

	for _, tt := range []struct {
		x   float64
		bin int
	}{
		{4, 2}, {6, 3}, {12, 4},
	} {
		bin, err := a.BinNum(geom.NewPoint(tt.x))
		require.NoError(t, err)
		assert.Equal(t, tt.bin, bin, "x=%v", tt.x)
	}
}

func TestHyperMergeMismatch(t *testing.T) {
	a := twoLevel(t)

	var dm *DimensionMismatchError
	assert.ErrorAs(t, a.Merge(NewHyperBinning(2)), &dm)
	assert.ErrorIs(t, a.Merge(nil), ErrKindMismatch)
	assert.ErrorIs(t, a.Merge(opaque{a}), ErrKindMismatch)
	assert.Equal(t, 3, a.NumBins())
}

// opaque hides the hierarchy of a binning.
type opaque struct{ Binning }

func (opaque) AsHyper() (*HyperBinning, bool) { return nil, false }

func TestHyperClone(t *testing.T) {
	a := twoLevel(t)
	require.NoError(t, a.SetNames(geom.Names{"energy"}))

	c, err := a.CloneHyper()
	require.NoError(t, err)
	_, err = c.AddBin(box([]float64{10}, []float64{11}))
	require.NoError(t, err)

	assert.Equal(t, 3, a.NumBins())
	assert.Equal(t, 4, c.NumBins())
	assert.Equal(t, geom.Names{"energy"}, c.Names())
	assert.Equal(t, MemoryResident, c.Residency())
}

func TestHyperValidate(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		h := NewHyperBinning(1)
		_, err := h.AddNode(box([]float64{0}, []float64{1}), []int{1})
		require.NoError(t, err)
		_, err = h.AddNode(box([]float64{0}, []float64{1}), []int{0})
		require.NoError(t, err)

		assert.ErrorIs(t, h.Validate(), ErrCyclicGraph)
	})

	t.Run("dangling link", func(t *testing.T) {
		h := NewHyperBinning(1)
		_, err := h.AddNode(box([]float64{0}, []float64{1}), []int{5})
		require.NoError(t, err)

		assert.ErrorIs(t, h.Validate(), ErrNodeOutOfRange)
	})

	t.Run("negative link", func(t *testing.T) {
		h := NewHyperBinning(1)
		_, err := h.AddNode(box([]float64{0}, []float64{1}), []int{-1})
		assert.ErrorIs(t, err, ErrNodeOutOfRange)
	})
}

func TestHyperSetNames(t *testing.T) {
	h := NewHyperBinning(2)
	assert.Equal(t, geom.Names{"x0", "x1"}, h.Names())

	var dm *DimensionMismatchError
	assert.ErrorAs(t, h.SetNames(geom.Names{"a"}), &dm)
}

func TestKindAndResidencyStrings(t *testing.T) {
	assert.Equal(t, "hyper", KindHyper.String())
	assert.Equal(t, KindHyper, ParseKind("hyper"))
	assert.Equal(t, KindUnknown, ParseKind("grid"))
	assert.Equal(t, "store-backed", StoreBacked.String())
	assert.Equal(t, "memory", MemoryResident.String())
}
