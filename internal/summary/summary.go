// Package summary condenses a histogram into the figures shown by the
// info command.
package summary

import (
	"github.com/VividCortex/gohistogram"

	"github.com/hupe1980/hyperhist"
)

const buckets = 64

// Quantiles lists the probabilities reported for each distribution.
var Quantiles = []float64{0.05, 0.5, 0.95}

// Distribution approximates the spread of one per-bin quantity.
type Distribution struct {
	Mean      float64
	Quantiles []float64
}

// Summary describes a histogram.
type Summary struct {
	Name      string
	Dimension int
	Names     []string
	Residency string
	Nodes     int
	Bins      int
	EmptyBins int
	Integral  float64
	Overflow  float64
	Limits    string

	Content Distribution
	Volume  Distribution
	Density Distribution
}

// Of summarises h. Per-bin distributions are approximated with streaming
// histograms so store-backed histograms of any size are read once.
func Of(h *hyperhist.Histogram) (Summary, error) {
	s := Summary{
		Name:      h.Name(),
		Dimension: h.Dimension(),
		Names:     h.Names(),
		Residency: h.Residency().String(),
		Bins:      h.NumBins(),
		Integral:  h.Integral(),
		Overflow:  h.Overflow(),
		Limits:    h.Limits().String(),
	}
	if hb, ok := h.Binning().AsHyper(); ok {
		s.Nodes = hb.NumNodes()
	}
	if s.Bins == 0 {
		return s, nil
	}

	content := gohistogram.NewHistogram(buckets)
	volume := gohistogram.NewHistogram(buckets)
	density := gohistogram.NewHistogram(buckets)
	for bin, c := range h.Contents() {
		vol, err := h.BinVolume(bin)
		if err != nil {
			return Summary{}, err
		}
		if c == 0 {
			s.EmptyBins++
		}
		content.Add(c)
		volume.Add(vol)
		if vol > 0 {
			density.Add(c / vol)
		}
	}

	s.Content = distribution(content)
	s.Volume = distribution(volume)
	s.Density = distribution(density)
	return s, nil
}

func distribution(h *gohistogram.NumericHistogram) Distribution {
	d := Distribution{Mean: h.Mean(), Quantiles: make([]float64, len(Quantiles))}
	for i, q := range Quantiles {
		d.Quantiles[i] = h.Quantile(q)
	}
	return d
}
