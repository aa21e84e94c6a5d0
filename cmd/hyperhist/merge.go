package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
)

func newMergeCommand(a *app) *cobra.Command {
	var stored bool

	cmd := &cobra.Command{
		Use:   "merge TARGET SOURCE...",
		Short: "Merge stored histograms into a new one",
		Long: `Merge appends the bins of every SOURCE, in order, and saves the result as
TARGET. With --stored the target is built store-backed so the sources are
never all held in memory at once.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, sources := args[0], args[1:]
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			var h *hyperhist.Histogram
			if stored {
				capacity, err := hyperhist.EstimateCapacity(ctx, store, sources...)
				if err != nil {
					return err
				}
				a.logger.InfoContext(ctx, "merging", "sources", len(sources), "nodes", capacity.Nodes, "bins", capacity.Bins)
				if h, err = hyperhist.MergeStored(ctx, store, target, sources, a.histogramOptions()...); err != nil {
					return err
				}
			} else {
				if h, err = hyperhist.LoadMerged(ctx, store, sources, a.histogramOptions()...); err != nil {
					return err
				}
				if err := h.Save(ctx, store, target); err != nil {
					_ = h.Close()
					return err
				}
			}

			bins, integral := h.NumBins(), h.Integral()
			if err := h.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s bins, integral %g\n", target, humanize.Comma(int64(bins)), integral)
			return nil
		},
	}

	cmd.Flags().BoolVar(&stored, "stored", false, "build the target store-backed")

	return cmd
}
