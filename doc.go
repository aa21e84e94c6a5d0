// Package hyperhist provides N-dimensional histograms over adaptive,
// hierarchical binnings.
//
// A Histogram pairs a binning.Binning, which maps points to bins by spatial
// descent through a graph of axis-aligned regions, with a content.Store that
// accumulates weights and squared weights per bin. Histograms can be merged,
// sliced, compacted, projected onto one dimension and persisted.
//
// # Quick Start
//
// Build a binning from points and fill them:
//
//	domain := geom.MustBox([]float64{0, 0}, []float64{10, 10})
//	h, _ := hyperhist.Build(domain, points, binning.GridBuilder{Depth: 4}, binning.NewBuildOptions())
//	bin, _ := h.Fill(geom.NewPoint(1, 1))
//	v, _ := h.Val(geom.NewPoint(1, 1))
//
// Or fill into an existing binning:
//
//	h, _ := hyperhist.New(b, hyperhist.WithNames("x", "y"))
//	h.FillWeight(geom.NewPoint(3, 4), 2.5)
//
// # Boundaries
//
// Boxes are half-open: a point on an edge shared by two boxes belongs to
// the box above it. Edges on the upper limit of the binning are inclusive,
// so every point of the domain maps to exactly one bin. Points in no bin
// are counted in the overflow bin, whose index is NumBins().
//
// # Merge, Slice and Compaction
//
//	a.Merge(b)                     // b's bins follow a's, nothing is reconciled
//	s, _ := h.SliceAt(0, 2.5)      // cross-section at x0 == 2.5
//	n, _ := h.MergeBinsWithSameContent(ctx)
//	p, _ := h.Project(1, 20)       // 20 fixed-width bins along x1
//
// # Persistence
//
// Histograms live in a persistence.Store on top of any blobstore.BlobStore
// (memory, local files, S3, MinIO):
//
//	store := persistence.New(blobstore.NewLocalStore("./data"))
//	h.Save(ctx, store, "run-42")
//	h, _ := hyperhist.Load(ctx, store, "run-42")
//
// Loading with WithResidency(binning.StoreBacked) pages nodes on demand and
// holds the writer lease on the name; Close writes the histogram back as a
// new generation. LoadMerged and MergeStored combine several stored
// histograms.
//
// # Observability
//
// Operations report to a MetricsCollector (WithMetricsCollector) and a
// structured Logger (WithLogger). Both default to no-ops.
package hyperhist
