package hyperhist

import (
	"bufio"
	"io"
	"strconv"

	"github.com/hupe1980/hyperhist/persistence"
)

// WriteText writes the node graph as text, one line per node:
//
//	P|V [B] low... high... [low... high...] (content error | links...)
//
// The first field is P for primary nodes and V otherwise, followed by B for
// bins. Every box of the region contributes its low and high corner. Bins
// end with their content and error, internal nodes with their links.
func (h *Histogram) WriteText(w io.Writer) error {
	if h.closed {
		return ErrClosed
	}
	hb, ok := h.binning.AsHyper()
	if !ok {
		return ErrNotHierarchical
	}

	bw := bufio.NewWriter(w)
	var line []byte
	for id := range hb.NumNodes() {
		n, err := hb.Node(id)
		if err != nil {
			return translateError(err)
		}

		line = line[:0]
		if hb.IsPrimary(id) {
			line = append(line, 'P')
		} else {
			line = append(line, 'V')
		}
		if n.IsLeaf() {
			line = append(line, " B"...)
		}
		for _, b := range n.Region.Boxes() {
			for _, x := range b.Low.Coords {
				line = appendFloat(line, x)
			}
			for _, x := range b.High.Coords {
				line = appendFloat(line, x)
			}
		}
		if n.IsLeaf() {
			line = appendFloat(line, h.content.Content(n.Bin))
			line = appendFloat(line, h.content.Error(n.Bin))
		} else {
			for _, l := range n.Links {
				line = append(line, ' ')
				line = strconv.AppendInt(line, int64(l), 10)
			}
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func appendFloat(dst []byte, x float64) []byte {
	dst = append(dst, ' ')
	return strconv.AppendFloat(dst, x, 'g', -1, 64)
}

// SaveText writes the text dump to path, replacing any existing file only
// once the dump is complete.
func (h *Histogram) SaveText(path string) error {
	return persistence.SaveToFile(path, h.WriteText)
}
