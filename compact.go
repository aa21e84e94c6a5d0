package hyperhist

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/content"
)

// MergeBinsWithSameContent collapses sibling bins that hold identical
// content into their parent until no such group is left, and returns the
// number of bins removed.
//
// Each pass marks the children of every internal node whose children are
// all leaves with numerically equal content, drops the marked nodes,
// renumbers the survivors in order and remaps their links. A parent that
// lost all its children becomes a bin of the rebuilt binning. The new bin
// contents follow the CompactionMode. The histogram only changes once every
// pass has succeeded; a store-backed histogram is written as a new
// generation and reopened on it.
func (h *Histogram) MergeBinsWithSameContent(ctx context.Context) (removed int, err error) {
	if h.closed {
		return 0, ErrClosed
	}
	hb, ok := h.binning.AsHyper()
	if !ok {
		return 0, ErrNotHierarchical
	}

	start := time.Now()
	passes := 0
	defer func() {
		h.opts.metricsCollector.RecordCompaction(removed, passes, time.Since(start), err)
		h.logger.LogCompacted(ctx, removed, passes, err)
	}()

	cur, curContent := hb, h.content
	for {
		next, nextContent, err := compactPass(cur, curContent, h.opts.compactionMode)
		if err != nil {
			return 0, translateError(err)
		}
		passes++
		if next == nil {
			break
		}
		h.logger.LogCompaction(ctx, passes, cur.NumBins(), next.NumBins())
		removed += cur.NumBins() - next.NumBins()
		cur, curContent = next, nextContent
	}
	if cur == hb {
		return 0, nil
	}

	if h.bound != nil {
		if err := h.rewrite(ctx, cur, curContent); err != nil {
			return 0, err
		}
		return removed, nil
	}
	old := h.binning
	h.binning, h.content = cur, curContent
	_ = old.Close()
	return removed, nil
}

// compactPass runs one compaction pass over hb. It returns a nil binning
// when no node was removed. Every pass that returns a binning shrinks the
// arena, so repeated passes terminate.
func compactPass(hb *binning.HyperBinning, c *content.Store, mode CompactionMode) (*binning.HyperBinning, *content.Store, error) {
	nodes := hb.NumNodes()

	// parent -> bins collapsed into it. A shared leaf belongs to the first
	// parent that collapses it.
	removed := roaring.New()
	collapsed := make(map[int][]int)
	for id := range nodes {
		n, err := hb.Node(id)
		if err != nil {
			return nil, nil, err
		}
		if n.IsLeaf() {
			continue
		}
		bins, ok, err := uniformLeafChildren(hb, n, c)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		var claimed []int
		for i, l := range n.Links {
			if !removed.CheckedAdd(uint32(l)) {
				continue
			}
			claimed = append(claimed, bins[i])
		}
		collapsed[id] = claimed
	}
	if removed.IsEmpty() {
		return nil, nil, nil
	}

	newID := make([]int, nodes)
	next := 0
	for id := range nodes {
		if removed.Contains(uint32(id)) {
			newID[id] = -1
			continue
		}
		newID[id] = next
		next++
	}

	out := binning.NewHyperBinning(hb.Dimension())
	if err := out.SetNames(hb.Names()); err != nil {
		return nil, nil, err
	}
	out.Reserve(next)

	// sources[newBin] lists the old bins whose content the new bin takes.
	var sources [][]int
	for id := range nodes {
		if newID[id] < 0 {
			continue
		}
		n, err := hb.Node(id)
		if err != nil {
			return nil, nil, err
		}
		var links []int
		for _, l := range n.Links {
			if newID[l] >= 0 {
				links = append(links, newID[l])
			}
		}
		if _, err := out.AddNode(n.Region, links); err != nil {
			return nil, nil, err
		}
		if len(links) > 0 {
			continue
		}
		if n.IsLeaf() {
			sources = append(sources, []int{n.Bin})
		} else {
			sources = append(sources, collapsed[id])
		}
	}
	for _, p := range hb.Primaries() {
		if newID[p] >= 0 {
			if err := out.SetPrimary(newID[p]); err != nil {
				return nil, nil, err
			}
		}
	}
	out.RemapDomains(hb, newID)

	nc := content.New(out.NumBins())
	of := c.Overflow()
	nc.SetContent(nc.Overflow(), c.Content(of))
	nc.SetSumW2(nc.Overflow(), c.SumW2(of))

	switch mode {
	case PreserveValues:
		src := &Histogram{binning: hb, content: c, opts: applyOptions(nil)}
		dst := &Histogram{binning: out, content: nc, opts: applyOptions(nil)}
		if err := dst.SetContentsFromFunc(src); err != nil {
			return nil, nil, err
		}
	default:
		for bin, olds := range sources {
			var sum, sumW2 float64
			for _, o := range olds {
				sum += c.Content(o)
				sumW2 += c.SumW2(o)
			}
			nc.SetContent(bin, sum)
			nc.SetSumW2(bin, sumW2)
		}
	}
	return out, nc, nil
}

// uniformLeafChildren reports whether every child of n is a leaf and all
// of them hold the same content. It returns the children's bins.
func uniformLeafChildren(hb *binning.HyperBinning, n binning.Node, c *content.Store) ([]int, bool, error) {
	bins := make([]int, len(n.Links))
	for i, l := range n.Links {
		child, err := hb.Node(l)
		if err != nil {
			return nil, false, err
		}
		if !child.IsLeaf() {
			return nil, false, nil
		}
		bins[i] = child.Bin
	}
	first := c.Content(bins[0])
	for _, b := range bins[1:] {
		if c.Content(b) != first {
			return nil, false, nil
		}
	}
	return bins, true, nil
}
