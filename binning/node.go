package binning

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/hyperhist/geom"
)

// TableName is the persistent table holding one row per node.
const TableName = "binning"

// Node is one entry of the arena.
type Node struct {
	Region geom.Region
	Links  []int
	// Bin is the bin number of a leaf, -1 for internal nodes.
	Bin int
}

// IsLeaf reports whether the node has no links.
func (n Node) IsLeaf() bool { return len(n.Links) == 0 }

func (n Node) clone() Node {
	return Node{Region: n.Region.Clone(), Links: slices.Clone(n.Links), Bin: n.Bin}
}

// tableMeta is stored in the header of the binning table.
type tableMeta struct {
	Kind      string       `json:"kind"`
	Dimension int          `json:"dimension"`
	Names     []string     `json:"names,omitempty"`
	Nodes     int          `json:"nodes"`
	Bins      int          `json:"bins"`
	Primaries []byte       `json:"primaries"`
	Low       []float64    `json:"low,omitempty"`
	High      []float64    `json:"high,omitempty"`
	OwnLow    []float64    `json:"own_low,omitempty"`
	OwnHigh   []float64    `json:"own_high,omitempty"`
	Domains   []domainMeta `json:"domains,omitempty"`
}

// domainMeta persists one merged domain: its limits and its node ids as a
// serialized roaring bitmap.
type domainMeta struct {
	Low   []float64 `json:"low"`
	High  []float64 `json:"high"`
	Nodes []byte    `json:"nodes"`
}

var errShortRow = errors.New("binning: truncated node row")

// appendNode encodes n as
//
//	bin i32 | nBoxes u32 | nBoxes x (dim x low f64, dim x high f64) | nLinks u32 | links u32...
func appendNode(dst []byte, n Node) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(n.Bin)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(n.Region.Len()))
	for _, b := range n.Region.Boxes() {
		for _, x := range b.Low.Coords {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
		}
		for _, x := range b.High.Coords {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
		}
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(n.Links)))
	for _, l := range n.Links {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(l))
	}
	return dst
}

// rowReader decodes little-endian fields and keeps the first error.
type rowReader struct {
	buf []byte
	off int
	err error
}

func (r *rowReader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.buf) {
		r.err = errShortRow
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *rowReader) float64() float64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.buf) {
		r.err = errShortRow
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}

func decodeNode(row []byte, dim int) (Node, error) {
	r := &rowReader{buf: row}
	bin := int(int32(r.uint32()))
	nBoxes := int(r.uint32())
	if r.err == nil && nBoxes*dim*16 > len(row)-r.off {
		return Node{}, fmt.Errorf("%w: %d boxes", errShortRow, nBoxes)
	}

	region, _ := geom.NewRegion(dim)
	for range nBoxes {
		low := make([]float64, dim)
		high := make([]float64, dim)
		for d := range low {
			low[d] = r.float64()
		}
		for d := range high {
			high[d] = r.float64()
		}
		if r.err != nil {
			break
		}
		if err := region.Add(geom.Box{Low: geom.Point{Coords: low}, High: geom.Point{Coords: high}}); err != nil {
			return Node{}, err
		}
	}

	nLinks := int(r.uint32())
	if r.err == nil && nLinks*4 > len(row)-r.off {
		return Node{}, fmt.Errorf("%w: %d links", errShortRow, nLinks)
	}
	var links []int
	if nLinks > 0 {
		links = make([]int, nLinks)
		for i := range links {
			links[i] = int(r.uint32())
		}
	}
	if r.err != nil {
		return Node{}, r.err
	}
	if r.off != len(row) {
		return Node{}, fmt.Errorf("binning: %d trailing bytes in node row", len(row)-r.off)
	}
	return Node{Region: region, Links: links, Bin: bin}, nil
}
