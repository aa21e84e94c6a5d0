package hyperhist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	h := quadrantsWith(t, 2, 1, 0, 3)
	require.NoError(t, h.SetBinError(3, 0.5))

	var buf bytes.Buffer
	require.NoError(t, h.WriteText(&buf))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "P 0 0 10 10 1 4", lines[0])
	assert.Equal(t, "V 0 0 5 10 2 3", lines[1])
	assert.Equal(t, "V B 0 0 5 5 2 0", lines[2])
	assert.Equal(t, "V B 5 5 10 10 3 0.5", lines[6])
}

func TestWriteTextClosed(t *testing.T) {
	h := quadrants(t)
	require.NoError(t, h.Close())

	assert.ErrorIs(t, h.WriteText(&bytes.Buffer{}), ErrClosed)
}

func TestSaveText(t *testing.T) {
	h := quadrantsWith(t, 2, 1, 0, 3)
	path := filepath.Join(t.TempDir(), "quadrants.txt")

	require.NoError(t, h.SaveText(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, h.WriteText(&buf))
	assert.Equal(t, buf.String(), string(data))

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.SaveText(path), ErrClosed)
}
