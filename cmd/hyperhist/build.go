package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/internal/pointio"
)

// ErrNoPoints is returned when build is given no points file.
var ErrNoPoints = errors.New("a points file is required (use --points)")

type buildCommand struct {
	a *app

	points    string
	shadow    string
	format    string
	low       []float64
	high      []float64
	names     []string
	dims      []int
	depth     int
	start     int
	minCont   float64
	minShadow float64
	minWidth  []float64
	weights   bool
	empty     bool
	compact   bool
}

func newBuildCommand(a *app) *cobra.Command {
	bc := &buildCommand{a: a}

	cmd := &cobra.Command{
		Use:   "build NAME",
		Short: "Build a histogram from a points file and save it",
		Long: `Build bisects the domain into a hierarchical grid, fills the points and
saves the histogram under NAME. Points are read from CSV, JSON lines or
YAML; CSV columns beyond the dimension are weights.

The domain defaults to the bounding box of the points.`,
		Args: cobra.ExactArgs(1),
		RunE: bc.run,
	}

	f := cmd.Flags()
	f.StringVarP(&bc.points, "points", "p", "", "points file (.csv, .jsonl or .yaml)")
	f.StringVar(&bc.shadow, "shadow", "", "shadow points file validating each split")
	f.StringVar(&bc.format, "format", "", "points format, overriding the file extension")
	f.Float64SliceVar(&bc.low, "low", nil, "lower domain corner")
	f.Float64SliceVar(&bc.high, "high", nil, "upper domain corner")
	f.StringSliceVar(&bc.names, "names", nil, "dimension names")
	f.IntSliceVar(&bc.dims, "split-dims", nil, "dimensions eligible for splitting (default all)")
	f.IntVar(&bc.depth, "depth", -1, "bisection depth (default from config)")
	f.IntVar(&bc.start, "start-dim", -1, "first split dimension (default from config)")
	f.Float64Var(&bc.minCont, "min-content", -1, "minimum bin content (default from config)")
	f.Float64Var(&bc.minShadow, "min-shadow-content", 0, "minimum shadow content per bin")
	f.Float64SliceVar(&bc.minWidth, "min-width", nil, "minimum bin width, one value or one per dimension")
	f.BoolVar(&bc.weights, "weights", false, "count points by their first weight")
	f.BoolVar(&bc.empty, "empty", false, "build the binning without filling the points")
	f.BoolVar(&bc.compact, "compact", false, "merge sibling bins with equal content before saving")

	return cmd
}

func (bc *buildCommand) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]
	if bc.points == "" {
		return ErrNoPoints
	}
	format := pointio.Format("")
	if bc.format != "" {
		var err error
		if format, err = pointio.ParseFormat(bc.format); err != nil {
			return err
		}
	}

	points, err := pointio.ReadFile(bc.points, format, len(bc.low))
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("%s: %w", bc.points, hyperhist.ErrEmptyDomain)
	}

	domain, err := bc.domain(points)
	if err != nil {
		return err
	}

	buildOpts, err := bc.buildOptions(points.Dimension(), format)
	if err != nil {
		return err
	}

	var extra []hyperhist.Option
	if len(bc.names) > 0 {
		extra = append(extra, hyperhist.WithNames(bc.names...))
	}
	depth := bc.a.cfg.Build.Depth
	if bc.depth >= 0 {
		depth = bc.depth
	}

	h, err := hyperhist.Build(domain, points, binning.GridBuilder{Depth: depth}, buildOpts, bc.a.histogramOptions(extra...)...)
	if err != nil {
		return err
	}
	defer h.Close()

	if bc.compact {
		removed, err := h.MergeBinsWithSameContent(ctx)
		if err != nil {
			return err
		}
		bc.a.logger.InfoContext(ctx, "compacted", "removed_bins", removed)
	}

	store, err := bc.a.openStore(ctx)
	if err != nil {
		return err
	}
	if err := h.Save(ctx, store, name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s bins, %s points, integral %g\n",
		name, humanize.Comma(int64(h.NumBins())), humanize.Comma(int64(len(points))), h.Integral())
	return nil
}

func (bc *buildCommand) domain(points geom.PointSet) (geom.Box, error) {
	if len(bc.low) > 0 || len(bc.high) > 0 {
		return geom.NewBox(bc.low, bc.high)
	}
	return boundingBox(points)
}

func (bc *buildCommand) buildOptions(dim int, format pointio.Format) (binning.BuildOptions, error) {
	start := bc.a.cfg.Build.StartDimension
	if bc.start >= 0 {
		start = bc.start
	}
	minContent := bc.a.cfg.Build.MinBinContent
	if bc.minCont >= 0 {
		minContent = bc.minCont
	}

	opts := []binning.BuildOption{
		binning.WithStartDimension(start),
		binning.WithMinBinContent(minContent),
		binning.WithWeights(bc.weights),
	}
	if len(bc.dims) > 0 {
		opts = append(opts, binning.WithBinningDimensions(bc.dims...))
	}
	if len(bc.minWidth) > 0 {
		opts = append(opts, binning.WithMinBinWidths(bc.minWidth...))
	}
	if bc.empty {
		opts = append(opts, binning.WithEmpty())
	}
	if bc.shadow != "" {
		shadow, err := pointio.ReadFile(bc.shadow, format, dim)
		if err != nil {
			return binning.BuildOptions{}, err
		}
		opts = append(opts, binning.WithShadowData(shadow), binning.WithMinShadowBinContent(bc.minShadow))
	}
	return binning.NewBuildOptions(opts...), nil
}

// boundingBox returns the smallest box holding every point. Upper limits
// are inclusive, so the points on the far faces still find a bin.
func boundingBox(points geom.PointSet) (geom.Box, error) {
	dim := points.Dimension()
	low := make([]float64, dim)
	high := make([]float64, dim)
	for d := range dim {
		low[d], high[d] = math.Inf(1), math.Inf(-1)
	}
	for _, p := range points {
		for d, x := range p.Coords {
			low[d] = min(low[d], x)
			high[d] = max(high[d], x)
		}
	}
	return geom.NewBox(low, high)
}
