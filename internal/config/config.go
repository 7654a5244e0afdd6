// Package config provides configuration loading and management for the
// read-cache.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the root read-cache configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Diff      DiffConfig      `toml:"diff"`
	Sensitive SensitiveConfig `toml:"sensitive"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Watch     WatchConfig     `toml:"watch"`
}

// StoreConfig configures the content-addressed object store.
type StoreConfig struct {
	Path          string `toml:"path"`            // root directory, defaults to "<repo>/.pi/readcache"
	RetentionDays int    `toml:"retention_days"`  // age-based GC sweep window
}

// DiffConfig holds the [diff] size/line gate settings. The decision
// engine does not read them; its gates are the MaxDiffBytes and
// MaxDiffLines constants in internal/decision.
type DiffConfig struct {
	MaxBytes int `toml:"max_bytes"`
	MaxLines int `toml:"max_lines"`
}

// SensitiveConfig lets a deployment extend the built-in sensitive-path
// bypass list with additional glob patterns.
type SensitiveConfig struct {
	ExtraPatterns []string `toml:"extra_patterns"`
}

// TelemetryConfig holds the [telemetry] settings. No package reads
// them: decision and replay spans always go to the global OTel tracer.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Protocol string `toml:"protocol"` // otlp, stdout, noop
}

// WatchConfig holds the [watch] settings for the optional fsnotify
// invalidator. No package reads them: `readcache refresh --follow`
// takes its debounce from its own --debounce flag.
type WatchConfig struct {
	Enabled      bool `toml:"enabled"`
	DebounceMsec int  `toml:"debounce_msec"`
}

// New returns a Config with the read-cache's defaults.
func New() *Config {
	return &Config{
		Store: StoreConfig{
			Path:          filepath.Join(".pi", "readcache"),
			RetentionDays: 30,
		},
		Diff: DiffConfig{
			MaxBytes: 2 * 1024 * 1024,
			MaxLines: 12_000,
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
		Watch: WatchConfig{
			DebounceMsec: 250,
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file, starting from New()'s
// defaults so a partial file only overrides what it sets.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from readcache.toml in the current
// directory, returning defaults if no file is present.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, "readcache.toml")
	if _, err := os.Stat(path); err != nil {
		return New(), nil
	}
	return LoadFile(path)
}

// ResolveStorePath expands Store.Path relative to repoRoot if it isn't
// already absolute.
func (c *Config) ResolveStorePath(repoRoot string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(repoRoot, c.Store.Path)
}
