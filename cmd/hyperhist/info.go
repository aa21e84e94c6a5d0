package main

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/internal/summary"
	"github.com/hupe1980/hyperhist/persistence"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME...",
		Short: "Describe stored histograms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			for i, name := range args {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				if err := a.info(ctx, cmd.OutOrStdout(), store, name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			return nil
		},
	}
}

func (a *app) info(ctx context.Context, w io.Writer, store *persistence.Store, name string) error {
	kind, err := hyperhist.BinningKind(ctx, store, name)
	if err != nil {
		return err
	}
	generation, err := store.Generation(ctx, name)
	if err != nil {
		return err
	}
	size, err := storedBytes(ctx, store, name, generation)
	if err != nil {
		return err
	}

	h, err := hyperhist.Load(ctx, store, name, a.histogramOptions(hyperhist.WithResidency(binning.MemoryResident))...)
	if err != nil {
		return err
	}
	defer h.Close()

	s, err := summary.Of(h)
	if err != nil {
		return err
	}

	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintln(w, heading(name))

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	overflow := fmt.Sprintf("%g", s.Overflow)
	if s.Overflow != 0 {
		overflow = color.YellowString(overflow)
	}

	tbl.AppendRows([]table.Row{
		{"kind", kind},
		{"generation", generation},
		{"stored", humanize.Bytes(uint64(size))},
		{"dimension", s.Dimension},
		{"names", strings.Join(s.Names, ", ")},
		{"limits", s.Limits},
		{"nodes", humanize.Comma(int64(s.Nodes))},
		{"bins", humanize.Comma(int64(s.Bins))},
		{"empty bins", humanize.Comma(int64(s.EmptyBins))},
		{"integral", fmt.Sprintf("%g", s.Integral)},
		{"overflow", overflow},
	})
	tbl.Render()

	if s.Bins == 0 {
		return nil
	}

	fmt.Fprintln(w)
	dist := table.NewWriter()
	dist.SetOutputMirror(w)
	dist.SetStyle(table.StyleLight)
	header := table.Row{"per bin", "mean"}
	for _, q := range summary.Quantiles {
		header = append(header, fmt.Sprintf("p%g", q*100))
	}
	dist.AppendHeader(header)
	for _, d := range []struct {
		label string
		dist  summary.Distribution
	}{
		{"content", s.Content},
		{"volume", s.Volume},
		{"density", s.Density},
	} {
		row := table.Row{d.label, fmt.Sprintf("%.4g", d.dist.Mean)}
		for _, v := range d.dist.Quantiles {
			row = append(row, fmt.Sprintf("%.4g", v))
		}
		dist.AppendRow(row)
	}
	dist.Render()
	return nil
}

// storedBytes sums the sizes of the table blobs of one generation.
func storedBytes(ctx context.Context, store *persistence.Store, name, generation string) (int64, error) {
	blobs := store.Blobs()
	names, err := blobs.List(ctx, path.Join(name, generation)+"/")
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range names {
		b, err := blobs.Open(ctx, n)
		if err != nil {
			return 0, err
		}
		total += b.Size()
		_ = b.Close()
	}
	return total, nil
}
