// Package binning defines the Binning capability and its hierarchical
// implementation, HyperBinning.
//
// A HyperBinning is an arena of nodes addressed by integer id. Every node
// owns a geom.Region and a list of links to child nodes. Nodes without links
// are leaves and map one-to-one to bins; a subset of nodes is marked primary
// and serves as the entry points of the spatial descent used for lookups.
//
// The arena is either held in memory or paged on demand from a persistence
// table. Both residencies share every algorithm through the nodeSource
// abstraction.
package binning

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

var (
	// ErrKindMismatch is returned when two binnings of different kinds are merged.
	ErrKindMismatch = errors.New("binning: kind mismatch")

	// ErrNodeOutOfRange is returned for node ids outside the arena.
	ErrNodeOutOfRange = errors.New("binning: node id out of range")

	// ErrBinOutOfRange is returned for bin numbers outside [0, NumBins()).
	ErrBinOutOfRange = errors.New("binning: bin out of range")

	// ErrCyclicGraph is returned when the node links contain a cycle.
	ErrCyclicGraph = errors.New("binning: cyclic node graph")

	// ErrUnknownKind is returned when a persisted binning has an unknown kind.
	ErrUnknownKind = errors.New("binning: unknown kind")
)

// DimensionMismatchError reports binnings or points of different dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("binning: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind discriminates concrete binning types.
type Kind uint8

const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota
	// KindHyper identifies HyperBinning.
	KindHyper
)

func (k Kind) String() string {
	switch k {
	case KindHyper:
		return "hyper"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	if s == KindHyper.String() {
		return KindHyper
	}
	return KindUnknown
}

// Residency tells where the nodes of a binning live.
type Residency uint8

const (
	// MemoryResident binnings hold every node in memory.
	MemoryResident Residency = iota
	// StoreBacked binnings page nodes from a persistence table on demand.
	StoreBacked
)

func (r Residency) String() string {
	if r == StoreBacked {
		return "store-backed"
	}
	return "memory"
}

// Binning maps points to bins.
type Binning interface {
	Kind() Kind
	Dimension() int

	// NumBins returns the number of bins. It is also the overflow index.
	NumBins() int

	// BinNum returns the bin containing p, or NumBins() when no bin does.
	BinNum(p geom.Point) (int, error)
	BinNums(ps []geom.Point) ([]int, error)
	BinRegion(bin int) (geom.Region, error)

	// BinLimits returns the limits that decide which upper edges of bin are
	// inclusive. They differ from Limits for bins appended by Merge.
	BinLimits(bin int) (geom.Box, error)

	// Limits returns the bounding box of all primary nodes.
	Limits() geom.Box

	Names() geom.Names
	SetNames(names geom.Names) error

	// Merge appends other to the receiver. On error neither operand changes.
	Merge(other Binning) error

	// Clone returns a deep, memory-resident copy.
	Clone() (Binning, error)

	Residency() Residency
	Reserve(nodes int)

	// AsHyper gives access to the hierarchical structure when supported.
	AsHyper() (*HyperBinning, bool)

	Save(ctx context.Context, w *persistence.Writer) error
	Close() error
}

// Info summarises a stored binning without loading its nodes.
type Info struct {
	Kind      Kind
	Dimension int
	Nodes     int
	Bins      int
}

// ReadInfo reads the header of the binning stored in r.
func ReadInfo(ctx context.Context, r *persistence.Reader) (Info, error) {
	t, err := r.OpenTable(ctx, TableName)
	if err != nil {
		return Info{}, err
	}
	defer t.Close()

	var meta tableMeta
	if err := t.DecodeMeta(&meta); err != nil {
		return Info{}, &persistence.SchemaError{Table: TableName, Err: err}
	}
	return Info{
		Kind:      ParseKind(meta.Kind),
		Dimension: meta.Dimension,
		Nodes:     meta.Nodes,
		Bins:      meta.Bins,
	}, nil
}

// ReadKind reads the kind of the binning stored in r without loading it.
func ReadKind(ctx context.Context, r *persistence.Reader) (Kind, error) {
	info, err := ReadInfo(ctx, r)
	return info.Kind, err
}

// Open loads the binning stored in r. A StoreBacked binning keeps the table
// open and must be closed.
func Open(ctx context.Context, r *persistence.Reader, residency Residency) (Binning, error) {
	t, err := r.OpenTable(ctx, TableName)
	if err != nil {
		return nil, err
	}

	var meta tableMeta
	if err := t.DecodeMeta(&meta); err != nil {
		_ = t.Close()
		return nil, &persistence.SchemaError{Table: TableName, Err: err}
	}

	switch ParseKind(meta.Kind) {
	case KindHyper:
		h, err := openHyper(ctx, t, meta, residency)
		if err != nil {
			_ = t.Close()
			return nil, err
		}
		if residency == MemoryResident {
			if err := t.Close(); err != nil {
				return nil, err
			}
		}
		return h, nil
	default:
		_ = t.Close()
		return nil, &persistence.SchemaError{Table: TableName, Err: fmt.Errorf("%w: %q", ErrUnknownKind, meta.Kind)}
	}
}
