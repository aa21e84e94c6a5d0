package binning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist/blobstore"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

func saved(t *testing.T, b Binning) (*persistence.Store, *persistence.Reader) {
	t.Helper()
	ctx := context.Background()
	store := persistence.New(blobstore.NewMemoryStore(), persistence.WithPageRows(2))

	w, err := store.OpenForWrite(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, w))
	require.NoError(t, w.Commit(ctx))

	r, err := store.OpenForRead(ctx, "b")
	require.NoError(t, err)
	return store, r
}

func TestSaveOpenResidencies(t *testing.T) {
	ctx := context.Background()
	points := geom.PointSet{geom.NewPoint(0.1, 0.1), geom.NewPoint(0.9, 0.4)}
	orig, err := GridBuilder{Depth: 4}.Build(unitSquare, points, NewBuildOptions())
	require.NoError(t, err)
	require.NoError(t, orig.SetNames(geom.Names{"x", "y"}))
	_, r := saved(t, orig)

	probes := geom.PointSet{
		geom.NewPoint(0, 0), geom.NewPoint(0.3, 0.7), geom.NewPoint(0.5, 0.5),
		geom.NewPoint(1, 1), geom.NewPoint(0.99, 0.01), geom.NewPoint(2, 0),
	}
	want, err := orig.BinNums(probes)
	require.NoError(t, err)

	for _, residency := range []Residency{MemoryResident, StoreBacked} {
		t.Run(residency.String(), func(t *testing.T) {
			b, err := Open(ctx, r, residency)
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, residency, b.Residency())
			assert.Equal(t, orig.NumBins(), b.NumBins())
			assert.Equal(t, geom.Names{"x", "y"}, b.Names())
			assert.Equal(t, orig.Limits(), b.Limits())

			got, err := b.BinNums(probes)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			for bin := range orig.NumBins() {
				wr, err := orig.BinRegion(bin)
				require.NoError(t, err)
				gr, err := b.BinRegion(bin)
				require.NoError(t, err)
				assert.True(t, wr.Equal(gr), "bin %d", bin)
			}

			hb, ok := b.AsHyper()
			require.True(t, ok)
			require.NoError(t, hb.Validate())
		})
	}
}

func TestSaveOpenKeepsMergedDomains(t *testing.T) {
	ctx := context.Background()
	orig := twoLevel(t)
	other := NewHyperBinning(1)
	_, err := other.AddBin(box([]float64{10}, []float64{12}))
	require.NoError(t, err)
	require.NoError(t, orig.Merge(other))
	_, r := saved(t, orig)

	probes := geom.PointSet{geom.NewPoint(4), geom.NewPoint(12), geom.NewPoint(6)}
	for _, residency := range []Residency{MemoryResident, StoreBacked} {
		t.Run(residency.String(), func(t *testing.T) {
			b, err := Open(ctx, r, residency)
			require.NoError(t, err)
			defer b.Close()

			got, err := b.BinNums(probes)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3, 4}, got)

			lim, err := b.BinLimits(2)
			require.NoError(t, err)
			assert.Equal(t, geom.MustBox([]float64{0}, []float64{4}), lim)
		})
	}
}

func TestStoreBackedAppend(t *testing.T) {
	ctx := context.Background()
	_, r := saved(t, twoLevel(t))

	b, err := Open(ctx, r, StoreBacked)
	require.NoError(t, err)
	defer b.Close()

	b.Reserve(10)
	require.NoError(t, b.Merge(twoLevel(t)))
	assert.Equal(t, 6, b.NumBins())

	hb, _ := b.AsHyper()
	assert.Equal(t, 10, hb.NumNodes())
	id, err := hb.BinNode(5)
	require.NoError(t, err)
	assert.Equal(t, 9, id)

	c, err := b.Clone()
	require.NoError(t, err)
	assert.Equal(t, MemoryResident, c.Residency())
	assert.Equal(t, 6, c.NumBins())
}

func TestReadInfo(t *testing.T) {
	ctx := context.Background()
	_, r := saved(t, twoLevel(t))

	info, err := ReadInfo(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, Info{Kind: KindHyper, Dimension: 1, Nodes: 5, Bins: 3}, info)

	kind, err := ReadKind(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, KindHyper, kind)
}

func TestOpenMissingTable(t *testing.T) {
	ctx := context.Background()
	store := persistence.New(blobstore.NewMemoryStore())
	w, err := store.OpenForWrite(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(ctx, "other", struct{}{}, 0, nil))
	require.NoError(t, w.Commit(ctx))
	r, err := store.OpenForRead(ctx, "b")
	require.NoError(t, err)

	_, err = Open(ctx, r, MemoryResident)

	var se *persistence.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TableName, se.Table)
}

func TestOpenUnknownKind(t *testing.T) {
	ctx := context.Background()
	store := persistence.New(blobstore.NewMemoryStore())
	w, err := store.OpenForWrite(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(ctx, TableName, tableMeta{Kind: "grid", Dimension: 1}, 0, nil))
	require.NoError(t, w.Commit(ctx))
	r, err := store.OpenForRead(ctx, "b")
	require.NoError(t, err)

	_, err = Open(ctx, r, MemoryResident)

	assert.ErrorIs(t, err, ErrUnknownKind)
	var se *persistence.SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestNodeCodec(t *testing.T) {
	r, err := geom.NewRegion(2,
		geom.MustBox([]float64{0, 0}, []float64{1, 2}),
		geom.MustBox([]float64{3, -1}, []float64{4, 0}),
	)
	require.NoError(t, err)
	n := Node{Region: r, Links: []int{7, 3}, Bin: -1}

	row := appendNode(nil, n)
	got, err := decodeNode(row, 2)
	require.NoError(t, err)
	assert.True(t, n.Region.Equal(got.Region))
	assert.Equal(t, n.Links, got.Links)
	assert.Equal(t, -1, got.Bin)

	_, err = decodeNode(row[:len(row)-3], 2)
	assert.Error(t, err)
	_, err = decodeNode(append(row, 0), 2)
	assert.Error(t, err)
}
