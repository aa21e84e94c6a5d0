package fixedhist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalid(t *testing.T) {
	_, err := New("x", 0, 0, 1)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = New("x", 4, 1, 1)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestFindBinAndEdges(t *testing.T) {
	h, err := New("x", 4, 0, 4)
	require.NoError(t, err)

	assert.Equal(t, Underflow, h.FindBin(-0.1))
	assert.Equal(t, 0, h.FindBin(0))
	assert.Equal(t, 1, h.FindBin(1))
	assert.Equal(t, 3, h.FindBin(3.999))
	assert.Equal(t, 4, h.FindBin(4))

	assert.Equal(t, 1.0, h.BinLowEdge(1))
	assert.Equal(t, 2.0, h.BinUpEdge(1))
	assert.Equal(t, 1.5, h.BinCenter(1))
	assert.Equal(t, 0.0, h.BinUpEdge(Underflow))
	assert.Equal(t, 4.0, h.BinLowEdge(4))
	assert.True(t, math.IsInf(h.BinUpEdge(4), 1))
}

func TestFill(t *testing.T) {
	h, err := New("x", 2, 0, 2)
	require.NoError(t, err)

	h.Fill(0.5, 2)
	h.Fill(1.5, 3)
	h.Fill(-1, 1)
	h.Fill(2, 4)

	assert.Equal(t, []float64{2, 3}, h.Contents())
	assert.Equal(t, 1.0, h.Underflow())
	assert.Equal(t, 4.0, h.Overflow())
	assert.Equal(t, 5.0, h.Integral())
	assert.Equal(t, 2.0, h.Error(0))

	h.ResetErrors()
	assert.Zero(t, h.Error(0))
}
