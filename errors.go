package hyperhist

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
	"github.com/hupe1980/hyperhist/persistence"
)

var (
	// ErrKindMismatch is returned when histograms with binnings of different
	// kinds are merged.
	ErrKindMismatch = binning.ErrKindMismatch

	// ErrNotHierarchical is returned by operations that need a HyperBinning.
	ErrNotHierarchical = errors.New("hyperhist: binning is not hierarchical")

	// ErrClosed is returned when a closed histogram is used.
	ErrClosed = errors.New("hyperhist: histogram is closed")

	// ErrInvalidSlice is returned for slice dimensions that are out of range,
	// repeated, or as many as the histogram has.
	ErrInvalidSlice = errors.New("hyperhist: invalid slice")

	// ErrInvalidProjection is returned for a projection onto a missing
	// dimension or onto zero bins.
	ErrInvalidProjection = errors.New("hyperhist: invalid projection")

	// ErrBinOutOfRange is returned for bin numbers outside [0, NumBins()].
	ErrBinOutOfRange = binning.ErrBinOutOfRange

	// ErrEmptyDomain is returned when a histogram is built over a
	// zero-dimensional domain.
	ErrEmptyDomain = binning.ErrEmptyDomain

	// ErrNotStoreBacked is returned by store operations on a histogram that
	// is not bound to a store.
	ErrNotStoreBacked = errors.New("hyperhist: histogram is not bound to a store")

	// ErrNoInputs is returned when a multi-histogram load receives no names.
	ErrNoInputs = errors.New("hyperhist: no histograms given")
)

// SchemaError reports a missing or inconsistent table of a stored histogram.
type SchemaError = persistence.SchemaError

// ChecksumMismatchError reports a corrupted table page.
type ChecksumMismatchError = persistence.ChecksumMismatchError

// DimensionMismatchError indicates a point, binning or name list of the
// wrong dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("hyperhist: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var bdm *binning.DimensionMismatchError
	if errors.As(err, &bdm) {
		return &DimensionMismatchError{Expected: bdm.Expected, Actual: bdm.Actual, cause: err}
	}
	var gdm *geom.DimensionError
	if errors.As(err, &gdm) {
		return &DimensionMismatchError{Expected: gdm.Expected, Actual: gdm.Actual, cause: err}
	}
	return err
}
