// Store defaults loaded from an optional YAML file.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config holds store defaults that individual flags override.
type config struct {
	// Path is the backing file location.
	Path string `yaml:"path"`
	// DelayedWrite is a duration string such as "50ms". Empty means
	// synchronous writes.
	DelayedWrite string `yaml:"delayed_write"`
	// NoCache disables the in-memory cached view.
	NoCache bool `yaml:"no_cache"`
	// CacheSize is the advisory cache bound. Zero keeps the default.
	CacheSize int `yaml:"cache_size"`
}

// delay parses the configured write delay.
func (c *config) delay() (time.Duration, error) {
	if c.DelayedWrite == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.DelayedWrite)
	if err != nil {
		return 0, fmt.Errorf("invalid delayed_write %q: %w", c.DelayedWrite, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("delayed_write must be non-negative, got %q", c.DelayedWrite)
	}
	return d, nil
}

// loadConfig reads the YAML config at path. A missing file yields the zero
// config.
func loadConfig(path string) (config, error) {
	var cfg config
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if _, err := cfg.delay(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.CacheSize < 0 {
		return cfg, fmt.Errorf("%s: cache_size must be non-negative", path)
	}
	return cfg, nil
}
