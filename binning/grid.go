package binning

import (
	"errors"

	"github.com/hupe1980/hyperhist/geom"
)

// ErrEmptyDomain is returned when a builder receives a zero-dimensional domain.
var ErrEmptyDomain = errors.New("binning: zero-dimensional domain")

// GridBuilder bisects the domain recursively. Level l splits along the
// l-th split dimension (cycling from StartDimension) at its midpoint; when
// that split would break the minimum width or content thresholds the next
// dimension is tried, and when none qualifies the cell becomes a bin.
// RandomSeed is not used.
type GridBuilder struct {
	// Depth is the number of bisection levels; 0 yields a single bin.
	Depth int
}

var _ Builder = GridBuilder{}

type cell struct {
	box      geom.Box
	children []*cell
	size     int
}

// Build implements Builder. An empty point set or a zero-volume domain
// yields a binning without bins.
func (g GridBuilder) Build(domain geom.Box, points geom.PointSet, opts BuildOptions) (Binning, error) {
	dim := domain.Dimension()
	if dim == 0 {
		return nil, ErrEmptyDomain
	}
	if err := points.Validate(dim); err != nil {
		return nil, err
	}
	if err := opts.ShadowPoints.Validate(dim); err != nil {
		return nil, err
	}

	h := NewHyperBinning(dim)
	if len(points) == 0 || domain.Volume() == 0 {
		return h, nil
	}

	dims := opts.Dimensions(dim)
	inside := func(ps geom.PointSet) geom.PointSet {
		out := make(geom.PointSet, 0, len(ps))
		for _, p := range ps {
			if domain.ContainsWithin(p, domain) {
				out = append(out, p)
			}
		}
		return out
	}
	root := g.split(domain, inside(points), inside(opts.ShadowPoints), 0, dims, opts)

	h.Reserve(root.size)
	if err := emit(h, root); err != nil {
		return nil, err
	}
	if err := h.SetPrimary(0); err != nil {
		return nil, err
	}
	return h, nil
}

func (g GridBuilder) split(box geom.Box, points, shadow geom.PointSet, level int, dims []int, opts BuildOptions) *cell {
	c := &cell{box: box, size: 1}
	if level >= g.Depth || len(dims) == 0 {
		return c
	}

	for k := range dims {
		d := dims[(level+k)%len(dims)]
		w := box.Width(d)
		if w <= 0 || w/2 < opts.MinBinWidth(d) {
			continue
		}
		mid := box.Min(d) + w/2
		lowBox, highBox := box.Clone(), box.Clone()
		lowBox.High.Coords[d] = mid
		highBox.Low.Coords[d] = mid

		lowPts, highPts := partition(points, d, mid)
		if count(lowPts, opts.UseWeights) < opts.MinBinContent || count(highPts, opts.UseWeights) < opts.MinBinContent {
			continue
		}
		lowShadow, highShadow := partition(shadow, d, mid)
		if len(opts.ShadowPoints) > 0 &&
			(count(lowShadow, opts.UseWeights) < opts.MinShadowBinContent || count(highShadow, opts.UseWeights) < opts.MinShadowBinContent) {
			continue
		}

		lo := g.split(lowBox, lowPts, lowShadow, level+1, dims, opts)
		hi := g.split(highBox, highPts, highShadow, level+1, dims, opts)
		c.children = []*cell{lo, hi}
		c.size += lo.size + hi.size
		return c
	}
	return c
}

func partition(ps geom.PointSet, d int, mid float64) (low, high geom.PointSet) {
	for _, p := range ps {
		if p.Coords[d] < mid {
			low = append(low, p)
		} else {
			high = append(high, p)
		}
	}
	return low, high
}

func count(ps geom.PointSet, useWeights bool) float64 {
	if useWeights {
		return ps.TotalWeight()
	}
	return float64(len(ps))
}

// emit adds c and its subtree in pre-order.
func emit(h *HyperBinning, c *cell) error {
	id := h.NumNodes()
	var links []int
	next := id + 1
	for _, ch := range c.children {
		links = append(links, next)
		next += ch.size
	}
	if _, err := h.AddNode(geom.RegionOf(c.box), links); err != nil {
		return err
	}
	for _, ch := range c.children {
		if err := emit(h, ch); err != nil {
			return err
		}
	}
	return nil
}
