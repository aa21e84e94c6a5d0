package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/render"
)

// ErrNoOutput is returned when render is given no output file.
var ErrNoOutput = errors.New("output file is required (use --output)")

func newRenderCommand(a *app) *cobra.Command {
	var (
		out     string
		density bool
		nBins   int
		grid    int
		plane   []int
		at      []float64
	)

	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Render a histogram as an HTML page",
		Long: `Render writes every projection of the histogram as a bar chart. Planar
histograms also get a heat map; for higher dimensions --plane x,y together
with --at picks the cross-section drawn as heat map.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return ErrNoOutput
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			h, err := hyperhist.Load(ctx, store, args[0], a.histogramOptions(hyperhist.WithResidency(binning.MemoryResident))...)
			if err != nil {
				return err
			}
			defer h.Close()

			if len(plane) == 2 {
				s, err := h.Slice2D(plane[0], plane[1], geom.NewPoint(at...))
				if err != nil {
					return err
				}
				defer s.Close()
				h = s
			}

			opts := []render.Option{
				render.WithTitle(args[0]),
				render.WithDensity(density),
				render.WithBins(nBins),
				render.WithGrid(grid),
			}
			return render.ToFile(h, out, opts...)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&out, "output", "o", "", "HTML file to write")
	f.BoolVar(&density, "density", false, "plot content per unit width or volume")
	f.IntVar(&nBins, "bins", 50, "projection bins")
	f.IntVar(&grid, "grid", 64, "heat map cells per axis")
	f.IntSliceVar(&plane, "plane", nil, "two dimensions kept for the heat map")
	f.Float64SliceVar(&at, "at", nil, "point fixing the other dimensions of --plane")

	return cmd
}
