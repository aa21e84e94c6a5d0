// Package config loads the settings of the hyperhist command line tool.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
)

// Config is the top-level configuration. Field tags use mapstructure for
// viper and yaml for Dump.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// StoreConfig selects and tunes the blob store histograms are saved to.
type StoreConfig struct {
	// Backend is one of memory, local, s3 or minio.
	Backend         string `mapstructure:"backend" yaml:"backend"`
	Path            string `mapstructure:"path" yaml:"path"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKey       string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey       string `mapstructure:"secret_key" yaml:"-"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	// CommitTable names a DynamoDB table holding generation pointers for
	// the s3 backend.
	CommitTable     string `mapstructure:"commit_table" yaml:"commit_table"`
	PageRows        int    `mapstructure:"page_rows" yaml:"page_rows"`
	Compression     string `mapstructure:"compression" yaml:"compression"`
	Codec           string `mapstructure:"codec" yaml:"codec"`
	CacheSize       string `mapstructure:"cache_size" yaml:"cache_size"`
	BlobCacheSize   string `mapstructure:"blob_cache_size" yaml:"blob_cache_size"`
	KeepGenerations bool   `mapstructure:"keep_generations" yaml:"keep_generations"`
	// MemoryLimit caps the bytes held by the caches. IORate caps store
	// reads and writes per second. Empty means unlimited.
	MemoryLimit     string `mapstructure:"memory_limit" yaml:"memory_limit"`
	IORate          string `mapstructure:"io_rate" yaml:"io_rate"`
	Residency       string `mapstructure:"residency" yaml:"residency"`
}

// BuildConfig holds the defaults of the build command.
type BuildConfig struct {
	Depth          int     `mapstructure:"depth" yaml:"depth"`
	StartDimension int     `mapstructure:"start_dimension" yaml:"start_dimension"`
	MinBinContent  float64 `mapstructure:"min_bin_content" yaml:"min_bin_content"`
	Compaction     string  `mapstructure:"compaction" yaml:"compaction"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus metrics on exit.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Defaults.
const (
	DefaultBackend     = "local"
	DefaultStorePath   = "./hyperhist-data"
	DefaultPageRows    = 1024
	DefaultCompression = "zstd"
	DefaultCodec       = "go-json"
	DefaultCacheSize   = "64MB"
	DefaultResidency   = "memory"
	DefaultDepth       = 8
	DefaultCompaction  = "integral"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Validation errors.
var (
	ErrInvalidBackend     = errors.New("invalid store backend")
	ErrInvalidCompression = errors.New("invalid compression")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidBuild       = errors.New("invalid build settings")
	ErrMissingBucket      = errors.New("bucket required")
	ErrInvalidResidency   = errors.New("invalid residency")
	ErrInvalidCompaction  = errors.New("invalid compaction mode")
)

// Validate checks the configuration for values the tool cannot use.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "local":
	case "s3", "minio":
		if c.Store.Bucket == "" {
			return fmt.Errorf("%w: backend %s", ErrMissingBucket, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Store.Backend)
	}

	switch c.Store.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCompression, c.Store.Compression)
	}

	switch c.Store.Residency {
	case "memory", "store":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidResidency, c.Store.Residency)
	}

	if _, err := c.Store.CacheBytes(); err != nil {
		return err
	}
	for _, size := range []string{c.Store.BlobCacheSize, c.Store.MemoryLimit, c.Store.IORate} {
		if _, err := parseSize(size); err != nil {
			return err
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	if c.Build.Depth < 0 || c.Build.StartDimension < 0 || c.Build.MinBinContent < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidBuild)
	}
	switch c.Build.Compaction {
	case "integral", "values":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCompaction, c.Build.Compaction)
	}

	return nil
}

// CacheBytes parses the page cache size.
func (s StoreConfig) CacheBytes() (int64, error) {
	return parseSize(s.CacheSize)
}

// BlobCacheBytes parses the blob cache size. Zero disables the cache.
func (s StoreConfig) BlobCacheBytes() (int64, error) {
	return parseSize(s.BlobCacheSize)
}

// Limits parses the memory limit and the IO rate.
func (s StoreConfig) Limits() (memory, ioRate int64, err error) {
	if memory, err = parseSize(s.MemoryLimit); err != nil {
		return 0, 0, err
	}
	if ioRate, err = parseSize(s.IORate); err != nil {
		return 0, 0, err
	}
	return memory, ioRate, nil
}

func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// LogLevel parses the log level name.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return l, nil
}
