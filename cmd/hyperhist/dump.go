package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
)

func newDumpCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dump NAME",
		Short: "Write the node graph of a histogram as text",
		Long: `Dump writes one line per node: P or V for primary and other nodes, B for
bins, the corners of every box, then content and error for bins or the
child links for internal nodes.`,
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

			if out != "" {
				return h.SaveText(out)
			}
			return h.WriteText(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
