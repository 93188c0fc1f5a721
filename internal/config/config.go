// Package config loads parser configuration from .blockparser.yml,
// BLOCKPARSER_* environment variables and command-line flags, in
// ascending precedence, via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete parser configuration.
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// CacheConfig bounds the content cache and names its persisted form.
type CacheConfig struct {
	// MaxEntries caps the number of cached subtrees.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
	// MaxBytes caps the summed raw-span bytes of cached subtrees.
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
	// PersistPath enables the on-disk cache when non-empty.
	PersistPath string `mapstructure:"persist_path" yaml:"persist_path"`
}

// ResolverConfig bounds document-level parallelism.
type ResolverConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	// Debounce groups rapid changes into one re-resolve.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	// Extensions restricts watching to these file suffixes.
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

// LogConfig selects log verbosity and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers every default value on v. Called before any
// config file or environment binding so partial files work.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.max_bytes", int64(64*1024*1024))
	v.SetDefault("cache.persist_path", "")
	v.SetDefault("resolver.workers", 0) // 0 = NumCPU, capped
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("watch.extensions", []string{".blk"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load unmarshals the effective configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be >= 0, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache.max_bytes must be >= 0, got %d", c.Cache.MaxBytes)
	}
	if c.Resolver.Workers < 0 {
		return fmt.Errorf("resolver.workers must be >= 0, got %d", c.Resolver.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %v", c.Watch.Debounce)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}
