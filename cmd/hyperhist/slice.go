package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
)

// ErrNoSliceDims is returned when slice is given no fixed dimension.
var ErrNoSliceDims = errors.New("at least one fixed dimension is required (use --dims and --at)")

func newSliceCommand(a *app) *cobra.Command {
	var (
		dims []int
		at   []float64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "slice NAME",
		Short: "Cut a histogram at fixed coordinates",
		Long: `Slice fixes the dimensions given by --dims at the values given by --at and
keeps every bin whose region meets that plane, dropping the fixed
dimensions. The result is saved under --output or dumped as text.`,
		Example: "  hyperhist slice events --dims 2 --at 0.5 --output events-z05",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(dims) == 0 {
				return ErrNoSliceDims
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

			s, err := h.Slice(dims, at)
			if err != nil {
				return err
			}
			defer s.Close()

			if out == "" {
				return s.WriteText(cmd.OutOrStdout())
			}
			if err := s.Save(ctx, store, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d dimensions, %d bins, integral %g\n", out, s.Dimension(), s.NumBins(), s.Integral())
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&dims, "dims", nil, "dimensions to fix")
	cmd.Flags().Float64SliceVar(&at, "at", nil, "values of the fixed dimensions")
	cmd.Flags().StringVarP(&out, "output", "o", "", "save the slice under this name")

	return cmd
}
