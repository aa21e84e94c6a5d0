package binning

import (
	"context"
	"fmt"

	"github.com/hupe1980/hyperhist/persistence"
)

// nodeSource is the node-access abstraction shared by both residencies.
type nodeSource interface {
	len() int
	node(id int) (Node, error)
	append(n Node)
	reserve(n int)
	residency() Residency
	close() error
}

// memSource holds every node in a slice.
type memSource struct {
	nodes []Node
}

func (s *memSource) len() int { return len(s.nodes) }

func (s *memSource) node(id int) (Node, error) {
	if id < 0 || id >= len(s.nodes) {
		return Node{}, fmt.Errorf("%w: %d", ErrNodeOutOfRange, id)
	}
	return s.nodes[id], nil
}

func (s *memSource) append(n Node) { s.nodes = append(s.nodes, n) }

func (s *memSource) reserve(n int) {
	if n > cap(s.nodes) {
		nodes := make([]Node, len(s.nodes), n)
		copy(nodes, s.nodes)
		s.nodes = nodes
	}
}

func (s *memSource) residency() Residency { return MemoryResident }

func (s *memSource) close() error { return nil }

// pagedSource reads the first base nodes from a persisted table and keeps
// nodes appended after loading in memory.
type pagedSource struct {
	table *persistence.Table
	dim   int
	base  int
	tail  []Node
}

func (s *pagedSource) len() int { return s.base + len(s.tail) }

func (s *pagedSource) node(id int) (Node, error) {
	if id < 0 || id >= s.len() {
		return Node{}, fmt.Errorf("%w: %d", ErrNodeOutOfRange, id)
	}
	if id >= s.base {
		return s.tail[id-s.base], nil
	}
	// Lookups carry no cancellation.
	row, err := s.table.Row(context.Background(), id)
	if err != nil {
		return Node{}, fmt.Errorf("binning: read node %d: %w", id, err)
	}
	n, err := decodeNode(row, s.dim)
	if err != nil {
		return Node{}, &persistence.SchemaError{Table: TableName, Err: fmt.Errorf("node %d: %w", id, err)}
	}
	return n, nil
}

func (s *pagedSource) append(n Node) { s.tail = append(s.tail, n) }

func (s *pagedSource) reserve(n int) {
	if extra := n - s.base; extra > cap(s.tail) {
		tail := make([]Node, len(s.tail), extra)
		copy(tail, s.tail)
		s.tail = tail
	}
}

func (s *pagedSource) residency() Residency { return StoreBacked }

func (s *pagedSource) close() error { return s.table.Close() }
