package hyperhist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
)

func line(t *testing.T, edges []float64, contents []float64, optFns ...Option) *Histogram {
	t.Helper()
	b := binning.NewHyperBinning(1)
	for i := range len(edges) - 1 {
		_, err := b.AddBin(geom.RegionOf(geom.MustBox([]float64{edges[i]}, []float64{edges[i+1]})))
		require.NoError(t, err)
	}
	h, err := New(b, optFns...)
	require.NoError(t, err)
	for bin, c := range contents {
		require.NoError(t, h.SetBinContent(bin, c))
	}
	return h
}

func TestProjectRedistributesByOverlap(t *testing.T) {
	h := line(t, []float64{0, 1, 3, 4}, []float64{10, 20, 5}, WithNames("energy"))

	p, err := h.Project(0, 4)
	require.NoError(t, err)

	assert.Equal(t, "energy", p.Name())
	assert.Equal(t, 0.0, p.Low())
	assert.Equal(t, 4.0, p.High())
	assert.Equal(t, []float64{10, 10, 10, 5}, p.Contents())
	assert.Zero(t, p.Error(0))
	assert.InDelta(t, 35, p.Integral(), 1e-12)
}

func TestProjectQuadrants(t *testing.T) {
	h := quadrantsWith(t, 2, 1, 0, 3)

	px, err := h.Project(0, 2)
	require.NoError(t, err)
	py, err := h.Project(1, 2)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 3}, px.Contents())
	assert.Equal(t, []float64{2, 4}, py.Contents())
	assert.Equal(t, "x1", py.Name())
}

func TestProjectSplitsWithinBox(t *testing.T) {
	h := quadrantsWith(t, 4, 0, 0, 0)

	p, err := h.Project(0, 4)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 2, 0, 0}, p.Contents())
}

func TestProjectMultiBoxRegion(t *testing.T) {
	b := binning.NewHyperBinning(1)
	r, err := geom.NewRegion(1,
		geom.MustBox([]float64{0}, []float64{1}),
		geom.MustBox([]float64{3}, []float64{6}),
	)
	require.NoError(t, err)
	_, err = b.AddBin(r)
	require.NoError(t, err)
	h, err := New(b)
	require.NoError(t, err)
	require.NoError(t, h.SetBinContent(0, 8))

	p, err := h.Project(0, 6)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 0, 0, 2, 2, 2}, p.Contents())
}

func TestProjectAll(t *testing.T) {
	h := quadrantsWith(t, 1, 1, 1, 1)

	ps, err := h.ProjectAll(5)
	require.NoError(t, err)

	require.Len(t, ps, 2)
	for _, p := range ps {
		assert.InDelta(t, 4, p.Integral(), 1e-12)
	}
}

func TestProjectInvalid(t *testing.T) {
	h := quadrants(t)

	_, err := h.Project(2, 4)
	assert.ErrorIs(t, err, ErrInvalidProjection)
	_, err = h.Project(-1, 4)
	assert.ErrorIs(t, err, ErrInvalidProjection)
	_, err = h.Project(0, 0)
	assert.ErrorIs(t, err, ErrInvalidProjection)
}
