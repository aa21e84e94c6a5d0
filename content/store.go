// Package content holds the per-bin accumulators of a histogram.
//
// A Store keeps two dense arrays, the accumulated weight and the accumulated
// squared weight, each with one extra slot at index NumBins() that collects
// fills which found no bin (the overflow slot).
package content

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// TableName is the persistent table holding one row per store entry.
const TableName = "content"

// Store is the content of a histogram. Indexes passed to its methods must be
// in [0, NumBins()]; NumBins() addresses the overflow slot.
type Store struct {
	content []float64
	sumW2   []float64
}

// New returns a zeroed store for nBins bins plus overflow.
func New(nBins int) *Store {
	if nBins < 0 {
		nBins = 0
	}
	return &Store{
		content: make([]float64, nBins+1),
		sumW2:   make([]float64, nBins+1),
	}
}

// NumBins returns the number of bins, excluding overflow.
func (s *Store) NumBins() int { return len(s.content) - 1 }

// Overflow returns the index of the overflow slot.
func (s *Store) Overflow() int { return len(s.content) - 1 }

// Fill adds w to bin and w*w to its squared-weight sum.
func (s *Store) Fill(bin int, w float64) {
	s.content[bin] += w
	s.sumW2[bin] += w * w
}

// Content returns the accumulated weight of bin.
func (s *Store) Content(bin int) float64 { return s.content[bin] }

// SetContent overwrites the accumulated weight of bin.
func (s *Store) SetContent(bin int, v float64) { s.content[bin] = v }

// SumW2 returns the accumulated squared weight of bin.
func (s *Store) SumW2(bin int) float64 { return s.sumW2[bin] }

// SetSumW2 overwrites the accumulated squared weight of bin.
func (s *Store) SetSumW2(bin int, v float64) { s.sumW2[bin] = v }

// Error returns sqrt(sumW2) of bin.
func (s *Store) Error(bin int) float64 { return math.Sqrt(s.sumW2[bin]) }

// SetError sets the squared-weight sum of bin to e*e.
func (s *Store) SetError(bin int, e float64) { s.sumW2[bin] = e * e }

// Sum returns the total content of all bins, excluding overflow.
func (s *Store) Sum() float64 { return floats.Sum(s.content[:s.Overflow()]) }

// Contents returns a copy of the bin contents, excluding overflow.
func (s *Store) Contents() []float64 {
	out := make([]float64, s.NumBins())
	copy(out, s.content)
	return out
}

// Reset zeroes every entry, overflow included.
func (s *Store) Reset() {
	clear(s.content)
	clear(s.sumW2)
}

// Reserve grows the capacity to hold nBins bins without reallocating.
func (s *Store) Reserve(nBins int) {
	if need := nBins + 1; need > cap(s.content) {
		c := make([]float64, len(s.content), need)
		copy(c, s.content)
		w := make([]float64, len(s.sumW2), need)
		copy(w, s.sumW2)
		s.content, s.sumW2 = c, w
	}
}

// Resize changes the bin count. Existing bins keep their values, new bins
// start at zero and the overflow slot moves to the new end.
func (s *Store) Resize(nBins int) {
	if nBins < 0 {
		nBins = 0
	}
	of, ofW2 := s.content[s.Overflow()], s.sumW2[s.Overflow()]
	old := s.NumBins()
	s.Reserve(nBins)
	s.content = s.content[:nBins+1]
	s.sumW2 = s.sumW2[:nBins+1]
	if nBins > old {
		clear(s.content[old:])
		clear(s.sumW2[old:])
	}
	s.content[nBins], s.sumW2[nBins] = of, ofW2
}

// Append grows s by the bins of other, copying other's bins after s's own
// and adding the overflow slots.
func (s *Store) Append(other *Store) {
	n := s.NumBins()
	s.Resize(n + other.NumBins())
	copy(s.content[n:], other.content[:other.Overflow()])
	copy(s.sumW2[n:], other.sumW2[:other.Overflow()])
	s.content[s.Overflow()] += other.content[other.Overflow()]
	s.sumW2[s.Overflow()] += other.sumW2[other.Overflow()]
}

// Add adds other element-wise. Both stores must have the same bin count.
func (s *Store) Add(other *Store) error {
	if other.NumBins() != s.NumBins() {
		return fmt.Errorf("content: bin count mismatch: %d != %d", s.NumBins(), other.NumBins())
	}
	floats.Add(s.content, other.content)
	floats.Add(s.sumW2, other.sumW2)
	return nil
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	out := &Store{content: make([]float64, len(s.content)), sumW2: make([]float64, len(s.sumW2))}
	copy(out.content, s.content)
	copy(out.sumW2, s.sumW2)
	return out
}
