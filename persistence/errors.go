package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no committed generation exists for a name.
	ErrNotFound = errors.New("persistence: not found")

	// ErrTableNotFound is wrapped by SchemaError when a table is missing.
	ErrTableNotFound = errors.New("table not found")

	// ErrLocked is returned when a name already has an exclusive writer.
	ErrLocked = errors.New("persistence: store is locked by another writer")

	// ErrInvalidMagic is returned for blobs that are not table files.
	ErrInvalidMagic = errors.New("persistence: invalid magic number")

	// ErrInvalidVersion is returned for table files of an unknown version.
	ErrInvalidVersion = errors.New("persistence: unsupported version")

	// ErrCorrupt is returned for structurally damaged table files.
	ErrCorrupt = errors.New("persistence: corrupt table")

	// ErrClosed is returned by operations on a closed writer, table or lease.
	ErrClosed = errors.New("persistence: closed")

	// ErrLeaseNotHeld is returned when an operation needs a lease that was
	// released or belongs to another store.
	ErrLeaseNotHeld = errors.New("persistence: lease not held")

	// ErrInvalidName is returned for empty or malformed histogram names.
	ErrInvalidName = errors.New("persistence: invalid name")
)

// SchemaError reports a missing or inconsistent table.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("persistence: table %q: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch returns true if err is or wraps a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	var cm *ChecksumMismatchError
	return errors.As(err, &cm)
}
