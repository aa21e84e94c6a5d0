package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
)

func newCompactCommand(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "compact NAME",
		Short: "Merge sibling bins with equal content",
		Long: `Compact repeatedly collapses every parent whose leaf children all hold the
same content into a single bin, then writes the histogram back. With
--mode values the surviving bins are evaluated from the original
histogram instead of summing the bins they replace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if mode != "" {
				a.cfg.Build.Compaction = mode
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			h, err := hyperhist.Load(ctx, store, args[0], a.histogramOptions(hyperhist.WithResidency(binning.StoreBacked))...)
			if err != nil {
				return err
			}

			before := h.NumBins()
			removed, err := h.MergeBinsWithSameContent(ctx)
			if err != nil {
				_ = h.Close()
				return err
			}
			after := h.NumBins()
			if err := h.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bins -> %d bins (%d removed)\n", args[0], before, after, removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "content rule: integral or values (default from config)")

	return cmd
}
