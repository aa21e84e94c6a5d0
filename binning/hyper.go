package binning

import (
	"context"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

// HyperBinning is a hierarchical binning over a DAG of region nodes.
type HyperBinning struct {
	dim       int
	names     geom.Names
	src       nodeSource
	primaries *roaring.Bitmap
	nBins     int

	// binNodes maps bins to node ids. Store-backed binnings build it lazily.
	binNodes []int

	// limits bounds every primary. own bounds the primaries added directly
	// and merged holds the domains brought in by Merge. An upper edge is
	// inclusive where it meets the limits of its node's domain.
	limits    geom.Box
	hasLimits bool
	own       geom.Box
	hasOwn    bool
	merged    []domain
}

// domain is the limits of a merged binning and the node ids it occupies.
type domain struct {
	limits geom.Box
	nodes  *roaring.Bitmap
}

func (d domain) clone() domain {
	return domain{limits: d.limits.Clone(), nodes: d.nodes.Clone()}
}

var _ Binning = (*HyperBinning)(nil)

// NewHyperBinning returns an empty memory-resident binning of dimension dim.
func NewHyperBinning(dim int) *HyperBinning {
	return &HyperBinning{
		dim:       dim,
		names:     geom.DefaultNames(dim),
		src:       &memSource{},
		primaries: roaring.New(),
		binNodes:  []int{},
	}
}

// Kind implements Binning.
func (h *HyperBinning) Kind() Kind { return KindHyper }

// Dimension implements Binning.
func (h *HyperBinning) Dimension() int { return h.dim }

// NumBins implements Binning.
func (h *HyperBinning) NumBins() int { return h.nBins }

// NumNodes returns the size of the arena.
func (h *HyperBinning) NumNodes() int { return h.src.len() }

// Residency implements Binning.
func (h *HyperBinning) Residency() Residency { return h.src.residency() }

// AsHyper implements Binning.
func (h *HyperBinning) AsHyper() (*HyperBinning, bool) { return h, true }

// Names implements Binning.
func (h *HyperBinning) Names() geom.Names { return h.names.Clone() }

// SetNames implements Binning.
func (h *HyperBinning) SetNames(names geom.Names) error {
	if len(names) != h.dim {
		return &DimensionMismatchError{Expected: h.dim, Actual: len(names)}
	}
	h.names = names.Clone()
	return nil
}

// Reserve implements Binning.
func (h *HyperBinning) Reserve(nodes int) {
	h.src.reserve(nodes)
}

// Limits implements Binning. An empty binning reports a zero box.
func (h *HyperBinning) Limits() geom.Box {
	if !h.hasLimits {
		return geom.Box{Low: geom.Point{Coords: make([]float64, h.dim)}, High: geom.Point{Coords: make([]float64, h.dim)}}
	}
	return h.limits.Clone()
}

func (h *HyperBinning) extendLimits(r geom.Region) {
	if r.Empty() {
		return
	}
	h.own, h.hasOwn = unionLimits(h.own, h.hasOwn, r.Limits())
	h.limits, h.hasLimits = unionLimits(h.limits, h.hasLimits, r.Limits())
}

func unionLimits(b geom.Box, ok bool, o geom.Box) (geom.Box, bool) {
	if !ok {
		return o.Clone(), true
	}
	return b.Union(o), true
}

// nodeLimits returns the limits of the domain node id belongs to.
func (h *HyperBinning) nodeLimits(id int) geom.Box {
	for _, d := range h.merged {
		if d.nodes.Contains(uint32(id)) {
			return d.limits
		}
	}
	if h.hasOwn {
		return h.own
	}
	return h.limits
}

// BinLimits implements Binning. It returns the limits of the binning the
// bin was built in, which decide whether its upper edges are inclusive.
func (h *HyperBinning) BinLimits(bin int) (geom.Box, error) {
	id, err := h.BinNode(bin)
	if err != nil {
		return geom.Box{}, err
	}
	return h.nodeLimits(id).Clone(), nil
}

// domainsAt returns the domains of h with node ids shifted by offset. The
// nodes outside every merged domain make up the first one.
func (h *HyperBinning) domainsAt(offset int) []domain {
	var out []domain
	if h.hasOwn {
		own := roaring.New()
		own.AddRange(uint64(offset), uint64(offset+h.src.len()))
		out = append(out, domain{limits: h.own.Clone(), nodes: own})
	}
	for _, d := range h.merged {
		shifted := remapIDs(d.nodes, func(id int) int { return id + offset })
		if h.hasOwn {
			out[0].nodes.AndNot(shifted)
		}
		out = append(out, domain{limits: d.limits.Clone(), nodes: shifted})
	}
	return out
}

// remapIDs maps every id of b through f, dropping those mapped below zero.
func remapIDs(b *roaring.Bitmap, f func(int) int) *roaring.Bitmap {
	out := roaring.New()
	it := b.Iterator()
	for it.HasNext() {
		if id := f(int(it.Next())); id >= 0 {
			out.Add(uint32(id))
		}
	}
	return out
}

// RemapDomains copies the limits and domains of src onto h, whose node ids
// are those of src mapped through newID. Nodes mapped to a negative id no
// longer exist.
func (h *HyperBinning) RemapDomains(src *HyperBinning, newID []int) {
	h.limits, h.hasLimits = src.limits.Clone(), src.hasLimits
	h.own, h.hasOwn = src.own.Clone(), src.hasOwn
	h.merged = make([]domain, 0, len(src.merged))
	for _, d := range src.merged {
		nodes := remapIDs(d.nodes, func(id int) int {
			if id >= len(newID) {
				return -1
			}
			return newID[id]
		})
		h.merged = append(h.merged, domain{limits: d.limits.Clone(), nodes: nodes})
	}
}

// AddNode appends a node and returns its id. Links may refer to nodes that
// are added later; Validate checks the finished graph. A node without links
// becomes the next bin.
func (h *HyperBinning) AddNode(region geom.Region, links []int) (int, error) {
	if region.Dimension() != h.dim {
		return -1, &DimensionMismatchError{Expected: h.dim, Actual: region.Dimension()}
	}
	for _, l := range links {
		if l < 0 {
			return -1, fmt.Errorf("%w: link %d", ErrNodeOutOfRange, l)
		}
	}

	id := h.src.len()
	n := Node{Region: region.Clone(), Links: slices.Clone(links), Bin: -1}
	if n.IsLeaf() {
		n.Bin = h.nBins
		h.nBins++
		if h.binNodes != nil {
			h.binNodes = append(h.binNodes, id)
		}
	}
	h.src.append(n)
	return id, nil
}

// AddBin appends a primary leaf and returns its bin number.
func (h *HyperBinning) AddBin(region geom.Region) (int, error) {
	id, err := h.AddNode(region, nil)
	if err != nil {
		return -1, err
	}
	h.primaries.Add(uint32(id))
	h.extendLimits(region)
	return h.nBins - 1, nil
}

// SetPrimary marks node id as an entry point for lookups.
func (h *HyperBinning) SetPrimary(id int) error {
	n, err := h.src.node(id)
	if err != nil {
		return err
	}
	h.primaries.Add(uint32(id))
	h.extendLimits(n.Region)
	return nil
}

// IsPrimary reports whether node id is primary.
func (h *HyperBinning) IsPrimary(id int) bool {
	return id >= 0 && h.primaries.Contains(uint32(id))
}

// Primaries returns the primary node ids in ascending order.
func (h *HyperBinning) Primaries() []int {
	out := make([]int, 0, h.primaries.GetCardinality())
	it := h.primaries.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Node returns node id. The returned node shares memory with the arena and
// must not be modified.
func (h *HyperBinning) Node(id int) (Node, error) { return h.src.node(id) }

// BinNode returns the node id of bin.
func (h *HyperBinning) BinNode(bin int) (int, error) {
	if bin < 0 || bin >= h.nBins {
		return -1, fmt.Errorf("%w: %d", ErrBinOutOfRange, bin)
	}
	if err := h.ensureBinNodes(); err != nil {
		return -1, err
	}
	return h.binNodes[bin], nil
}

func (h *HyperBinning) ensureBinNodes() error {
	if h.binNodes != nil {
		return nil
	}
	binNodes := make([]int, h.nBins)
	for id := range h.src.len() {
		n, err := h.src.node(id)
		if err != nil {
			return err
		}
		if n.IsLeaf() {
			if n.Bin < 0 || n.Bin >= h.nBins {
				return fmt.Errorf("%w: node %d has bin %d", ErrBinOutOfRange, id, n.Bin)
			}
			binNodes[n.Bin] = id
		}
	}
	h.binNodes = binNodes
	return nil
}

// BinRegion implements Binning.
func (h *HyperBinning) BinRegion(bin int) (geom.Region, error) {
	id, err := h.BinNode(bin)
	if err != nil {
		return geom.Region{}, err
	}
	n, err := h.src.node(id)
	if err != nil {
		return geom.Region{}, err
	}
	return n.Region.Clone(), nil
}

// BinNum implements Binning. The first primary whose region contains p is
// descended, following at each internal node the first child that contains
// p. Points in no primary or in a gap between children yield NumBins().
func (h *HyperBinning) BinNum(p geom.Point) (int, error) {
	overflow := h.nBins
	if p.Dimension() != h.dim {
		return overflow, &DimensionMismatchError{Expected: h.dim, Actual: p.Dimension()}
	}
	if !h.hasLimits {
		return overflow, nil
	}

	it := h.primaries.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		n, err := h.src.node(id)
		if err != nil {
			return overflow, err
		}
		limits := h.nodeLimits(id)
		if n.Region.ContainsWithin(p, limits) {
			return h.descend(n, p, limits)
		}
	}
	return overflow, nil
}

func (h *HyperBinning) descend(n Node, p geom.Point, limits geom.Box) (int, error) {
	overflow := h.nBins
	for depth := 0; !n.IsLeaf(); depth++ {
		if depth > h.src.len() {
			return overflow, ErrCyclicGraph
		}
		found := false
		for _, l := range n.Links {
			c, err := h.src.node(l)
			if err != nil {
				return overflow, err
			}
			if c.Region.ContainsWithin(p, limits) {
				n, found = c, true
				break
			}
		}
		if !found {
			return overflow, nil
		}
	}
	return n.Bin, nil
}

// BinNums implements Binning.
func (h *HyperBinning) BinNums(ps []geom.Point) ([]int, error) {
	out := make([]int, len(ps))
	for i, p := range ps {
		b, err := h.BinNum(p)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Merge implements Binning. The nodes of other are appended with their ids
// offset by the current node count and its primaries become primaries here.
// Regions are not reconciled: overlapping bins stay distinct. The nodes of
// other keep the limits of other, so a point on its upper edge is found in
// the same bin as before the merge.
func (h *HyperBinning) Merge(other Binning) error {
	if other == nil {
		return fmt.Errorf("%w: nil binning", ErrKindMismatch)
	}
	o, ok := other.AsHyper()
	if !ok || other.Kind() != h.Kind() {
		return fmt.Errorf("%w: %s into %s", ErrKindMismatch, other.Kind(), h.Kind())
	}
	if o.dim != h.dim {
		return &DimensionMismatchError{Expected: h.dim, Actual: o.dim}
	}

	nodes, err := o.collect()
	if err != nil {
		return err
	}
	primaries := o.Primaries()
	oLimits, oHasLimits := o.limits.Clone(), o.hasLimits
	offset := h.src.len()
	domains := o.domainsAt(offset)

	binOffset := h.nBins
	h.src.reserve(offset + len(nodes))
	for i, n := range nodes {
		for j := range n.Links {
			n.Links[j] += offset
		}
		if n.IsLeaf() {
			n.Bin += binOffset
			if h.binNodes != nil {
				h.binNodes = append(h.binNodes, offset+i)
			}
		}
		h.src.append(n)
	}
	h.nBins += o.nBins
	for _, id := range primaries {
		h.primaries.Add(uint32(id + offset))
	}
	if oHasLimits {
		h.limits, h.hasLimits = unionLimits(h.limits, h.hasLimits, oLimits)
	}
	h.merged = append(h.merged, domains...)
	return nil
}

// collect reads every node into memory as independent copies.
func (h *HyperBinning) collect() ([]Node, error) {
	nodes := make([]Node, h.src.len())
	for id := range nodes {
		n, err := h.src.node(id)
		if err != nil {
			return nil, err
		}
		nodes[id] = n.clone()
	}
	return nodes, nil
}

// Clone implements Binning.
func (h *HyperBinning) Clone() (Binning, error) {
	c, err := h.CloneHyper()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CloneHyper returns a deep, memory-resident copy.
func (h *HyperBinning) CloneHyper() (*HyperBinning, error) {
	nodes, err := h.collect()
	if err != nil {
		return nil, err
	}
	c := &HyperBinning{
		dim:       h.dim,
		names:     h.names.Clone(),
		src:       &memSource{nodes: nodes},
		primaries: h.primaries.Clone(),
		nBins:     h.nBins,
		limits:    h.limits.Clone(),
		hasLimits: h.hasLimits,
		own:       h.own.Clone(),
		hasOwn:    h.hasOwn,
	}
	for _, d := range h.merged {
		c.merged = append(c.merged, d.clone())
	}
	if err := c.ensureBinNodes(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks link ranges, leaf numbering, primaries and acyclicity.
func (h *HyperBinning) Validate() error {
	n := h.src.len()
	if !h.primaries.IsEmpty() && int(h.primaries.Maximum()) >= n {
		return fmt.Errorf("%w: primary %d", ErrNodeOutOfRange, h.primaries.Maximum())
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make([]uint8, n)
	seenBins := make([]bool, h.nBins)

	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case active:
			return fmt.Errorf("%w: through node %d", ErrCyclicGraph, id)
		case done:
			return nil
		}
		state[id] = active
		node, err := h.src.node(id)
		if err != nil {
			return err
		}
		if node.IsLeaf() {
			if node.Bin < 0 || node.Bin >= h.nBins || seenBins[node.Bin] {
				return fmt.Errorf("%w: node %d has bin %d", ErrBinOutOfRange, id, node.Bin)
			}
			seenBins[node.Bin] = true
		}
		for _, l := range node.Links {
			if l >= n {
				return fmt.Errorf("%w: node %d links to %d", ErrNodeOutOfRange, id, l)
			}
			if err := visit(l); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for id := range n {
		if err := visit(id); err != nil {
			return err
		}
	}
	if i := slices.Index(seenBins, false); i >= 0 {
		return fmt.Errorf("%w: bin %d has no leaf", ErrBinOutOfRange, i)
	}
	return nil
}

// Save implements Binning.
func (h *HyperBinning) Save(ctx context.Context, w *persistence.Writer) error {
	primaries, err := h.primaries.ToBytes()
	if err != nil {
		return fmt.Errorf("binning: encode primaries: %w", err)
	}
	meta := tableMeta{
		Kind:      h.Kind().String(),
		Dimension: h.dim,
		Names:     h.names,
		Nodes:     h.src.len(),
		Bins:      h.nBins,
		Primaries: primaries,
	}
	if h.hasLimits {
		meta.Low, meta.High = h.limits.Low.Coords, h.limits.High.Coords
	}
	if h.hasOwn {
		meta.OwnLow, meta.OwnHigh = h.own.Low.Coords, h.own.High.Coords
	}
	for _, d := range h.merged {
		nodes, err := d.nodes.ToBytes()
		if err != nil {
			return fmt.Errorf("binning: encode domain: %w", err)
		}
		meta.Domains = append(meta.Domains, domainMeta{Low: d.limits.Low.Coords, High: d.limits.High.Coords, Nodes: nodes})
	}

	return w.WriteTable(ctx, TableName, meta, h.src.len(), func(dst []byte, i int) ([]byte, error) {
		n, err := h.src.node(i)
		if err != nil {
			return nil, err
		}
		return appendNode(dst, n), nil
	})
}

// Close releases the backing table of a store-backed binning.
func (h *HyperBinning) Close() error {
	return h.src.close()
}

func openHyper(ctx context.Context, t *persistence.Table, meta tableMeta, residency Residency) (*HyperBinning, error) {
	schemaErr := func(err error) error {
		return &persistence.SchemaError{Table: TableName, Err: err}
	}
	if meta.Dimension <= 0 {
		return nil, schemaErr(fmt.Errorf("invalid dimension %d", meta.Dimension))
	}
	if t.Rows() != meta.Nodes {
		return nil, schemaErr(fmt.Errorf("%d rows, header says %d nodes", t.Rows(), meta.Nodes))
	}

	h := &HyperBinning{
		dim:       meta.Dimension,
		names:     geom.Names(meta.Names),
		primaries: roaring.New(),
		nBins:     meta.Bins,
	}
	if len(h.names) != h.dim {
		h.names = geom.DefaultNames(h.dim)
	}
	if len(meta.Primaries) > 0 {
		if err := h.primaries.UnmarshalBinary(meta.Primaries); err != nil {
			return nil, schemaErr(fmt.Errorf("primaries: %w", err))
		}
	}
	if len(meta.Low) > 0 {
		limits, err := geom.NewBox(meta.Low, meta.High)
		if err != nil {
			return nil, schemaErr(fmt.Errorf("limits: %w", err))
		}
		h.limits, h.hasLimits = limits, true
		h.own, h.hasOwn = limits.Clone(), true
	}
	if len(meta.OwnLow) > 0 {
		own, err := geom.NewBox(meta.OwnLow, meta.OwnHigh)
		if err != nil {
			return nil, schemaErr(fmt.Errorf("own limits: %w", err))
		}
		h.own, h.hasOwn = own, true
	}
	for i, dm := range meta.Domains {
		limits, err := geom.NewBox(dm.Low, dm.High)
		if err != nil {
			return nil, schemaErr(fmt.Errorf("domain %d: %w", i, err))
		}
		nodes := roaring.New()
		if err := nodes.UnmarshalBinary(dm.Nodes); err != nil {
			return nil, schemaErr(fmt.Errorf("domain %d nodes: %w", i, err))
		}
		h.merged = append(h.merged, domain{limits: limits, nodes: nodes})
	}

	switch residency {
	case StoreBacked:
		h.src = &pagedSource{table: t, dim: h.dim, base: meta.Nodes}
	default:
		src := &memSource{nodes: make([]Node, 0, meta.Nodes)}
		err := t.ForEach(ctx, func(i int, row []byte) error {
			n, err := decodeNode(row, h.dim)
			if err != nil {
				return schemaErr(fmt.Errorf("node %d: %w", i, err))
			}
			src.nodes = append(src.nodes, n)
			return nil
		})
		if err != nil {
			return nil, err
		}
		h.src = src
		if err := h.ensureBinNodes(); err != nil {
			return nil, schemaErr(err)
		}
	}
	return h, nil
}
