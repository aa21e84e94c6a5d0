package content

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RowSize is the encoded size of one store entry.
const RowSize = 16

// AppendRow appends entry i of s to dst.
func (s *Store) AppendRow(dst []byte, i int) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(s.content[i]))
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(s.sumW2[i]))
}

// SetRow decodes row into entry i of s.
func (s *Store) SetRow(i int, row []byte) error {
	if len(row) != RowSize {
		return fmt.Errorf("content: row %d: expected %d bytes, got %d", i, RowSize, len(row))
	}
	s.content[i] = math.Float64frombits(binary.LittleEndian.Uint64(row[0:8]))
	s.sumW2[i] = math.Float64frombits(binary.LittleEndian.Uint64(row[8:16]))
	return nil
}
