// Package config handles macaw.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a macaw.toml runtime configuration.
type Config struct {
	Memory  Memory  `toml:"memory"`
	GC      GC      `toml:"gc"`
	Profile Profile `toml:"profile"`

	// Dir is the directory containing the macaw.toml file (set at load time).
	Dir string `toml:"-"`
}

// Memory tunes the call-storage allocators.
type Memory struct {
	PoolSlotThreshold int `toml:"pool-slot-threshold"`
	PoolMaxBlocks     int `toml:"pool-max-blocks"`
	SignatureFreeList int `toml:"signature-free-list"`
}

// GC configures collector diagnostics.
type GC struct {
	Trace  bool `toml:"trace"`
	Stress bool `toml:"stress"`
}

// Profile configures call-shape profiling.
type Profile struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no macaw.toml is present.
func Default() *Config {
	return &Config{
		Memory: Memory{
			PoolSlotThreshold: 8,
			PoolMaxBlocks:     64,
			SignatureFreeList: 32,
		},
	}
}

// Load parses a macaw.toml file from the given directory. Fields absent
// from the file keep their defaults; unknown keys are rejected.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "macaw.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a macaw.toml file, then loads
// and returns the configuration. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "macaw.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks the configuration for values the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Memory.PoolSlotThreshold < 1 {
		return fmt.Errorf("memory.pool-slot-threshold must be at least 1, got %d", c.Memory.PoolSlotThreshold)
	}
	if c.Memory.PoolMaxBlocks < 1 {
		return fmt.Errorf("memory.pool-max-blocks must be at least 1, got %d", c.Memory.PoolMaxBlocks)
	}
	if c.Profile.Enabled && c.Profile.Path == "" {
		return fmt.Errorf("profile.path is required when profile.enabled is true")
	}
	return nil
}
