package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	configName      = ".hyperhist"
	configType      = "yaml"
	envPrefix       = "HYPERHIST"
	envKeySeparator = "_"
)

// Load reads configuration from file, environment and defaults, in
// increasing order of precedence: defaults, file, environment.
// If configPath is empty the file is searched in the working directory and
// $HOME; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", DefaultBackend)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("store.bucket", "")
	v.SetDefault("store.prefix", "")
	v.SetDefault("store.endpoint", "")
	v.SetDefault("store.region", "")
	v.SetDefault("store.access_key", "")
	v.SetDefault("store.secret_key", "")
	v.SetDefault("store.use_ssl", true)
	v.SetDefault("store.commit_table", "")
	v.SetDefault("store.page_rows", DefaultPageRows)
	v.SetDefault("store.compression", DefaultCompression)
	v.SetDefault("store.codec", DefaultCodec)
	v.SetDefault("store.cache_size", DefaultCacheSize)
	v.SetDefault("store.blob_cache_size", "")
	v.SetDefault("store.keep_generations", false)
	v.SetDefault("store.memory_limit", "")
	v.SetDefault("store.io_rate", "")
	v.SetDefault("store.residency", DefaultResidency)

	v.SetDefault("build.depth", DefaultDepth)
	v.SetDefault("build.start_dimension", 0)
	v.SetDefault("build.min_bin_content", 0.0)
	v.SetDefault("build.compaction", DefaultCompaction)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.textfile", "")
}

// Dump writes the effective configuration as YAML. Secrets are omitted.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
