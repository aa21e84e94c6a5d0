package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hyperhist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBackend, cfg.Store.Backend)
	assert.Equal(t, DefaultPageRows, cfg.Store.PageRows)
	assert.Equal(t, DefaultDepth, cfg.Build.Depth)
	assert.Equal(t, "integral", cfg.Build.Compaction)

	n, err := cfg.Store.CacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(64_000_000), n)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: minio
  bucket: histograms
  page_rows: 256
  cache_size: 1MiB
  memory_limit: 2GiB
build:
  depth: 12
log:
  level: debug
  format: json
`)
	t.Setenv("HYPERHIST_BUILD_DEPTH", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Store.Backend)
	assert.Equal(t, "histograms", cfg.Store.Bucket)
	assert.Equal(t, 256, cfg.Store.PageRows)
	assert.Equal(t, 5, cfg.Build.Depth)

	n, err := cfg.Store.CacheBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), n)

	mem, rate, err := cfg.Store.Limits()
	require.NoError(t, err)
	assert.Equal(t, int64(2<<30), mem)
	assert.Zero(t, rate)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"backend", "store:\n  backend: tape\n", ErrInvalidBackend},
		{"bucket", "store:\n  backend: s3\n", ErrMissingBucket},
		{"compression", "store:\n  compression: brotli\n", ErrInvalidCompression},
		{"cache size", "store:\n  cache_size: lots\n", ErrInvalidSize},
		{"io rate", "store:\n  io_rate: fast\n", ErrInvalidSize},
		{"log level", "log:\n  level: loud\n", ErrInvalidLogLevel},
		{"depth", "build:\n  depth: -1\n", ErrInvalidBuild},
		{"compaction", "build:\n  compaction: fuzzy\n", ErrInvalidCompaction},
		{"residency", "store:\n  residency: disk\n", ErrInvalidResidency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDumpOmitsSecret(t *testing.T) {
	path := writeConfig(t, "store:\n  secret_key: hunter2\n  access_key: me\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Store.SecretKey)

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	assert.Contains(t, buf.String(), "access_key: me")
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "  depth: 8")
}
