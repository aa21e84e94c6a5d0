package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/fixedhist"
)

func newProjectCommand(a *app) *cobra.Command {
	var (
		dim   int
		nBins int
		csv   bool
	)

	cmd := &cobra.Command{
		Use:   "project NAME",
		Short: "Project a histogram onto one dimension",
		Long: `Project spreads the content of every bin over a fixed-width
one-dimensional histogram in proportion to the overlap of its region.
A negative --dim projects onto every dimension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var projections []*fixedhist.Hist1D
			if dim < 0 {
				if projections, err = h.ProjectAll(nBins); err != nil {
					return err
				}
			} else {
				p, err := h.Project(dim, nBins)
				if err != nil {
					return err
				}
				projections = append(projections, p)
			}

			for _, p := range projections {
				tbl := table.NewWriter()
				tbl.SetOutputMirror(cmd.OutOrStdout())
				tbl.SetStyle(table.StyleLight)
				tbl.SetTitle(p.Name())
				tbl.AppendHeader(table.Row{"bin", "low", "high", "content"})
				for b := range p.NumBins() {
					tbl.AppendRow(table.Row{b, p.BinLowEdge(b), p.BinUpEdge(b), fmt.Sprintf("%.6g", p.Content(b))})
				}
				tbl.AppendFooter(table.Row{"", "", "integral", fmt.Sprintf("%.6g", p.Integral())})
				if csv {
					tbl.RenderCSV()
				} else {
					tbl.Render()
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&dim, "dim", 0, "dimension to project onto")
	cmd.Flags().IntVar(&nBins, "bins", 20, "number of projection bins")
	cmd.Flags().BoolVar(&csv, "csv", false, "print CSV instead of a table")

	return cmd
}
