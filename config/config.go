// Package config handles tickle.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "tickle.toml"

// Config represents a tickle.toml file.
type Config struct {
	Compiler Compiler `toml:"compiler"`
	Cache    Cache    `toml:"cache"`
	Log      Log      `toml:"log"`

	// Dir is the directory containing the tickle.toml file (set at load time).
	Dir string `toml:"-"`
}

// Compiler holds compiler tuning constants. They affect code size and
// speed, never the behavior of compiled scripts.
type Compiler struct {
	NarrowJumpLimit  int  `toml:"narrow-jump-limit"`
	JumpTableMinArms int  `toml:"jump-table-min-arms"`
	MaxNestingDepth  int  `toml:"max-nesting-depth"`
	Specialize       bool `toml:"specialize"`
}

// Cache configures the compile cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no tickle.toml exists.
func Default() *Config {
	return &Config{
		Compiler: DefaultCompiler(),
		Cache: Cache{
			Path: filepath.Join(".tickle", "cache.db"),
		},
	}
}

// DefaultCompiler returns the default compiler settings.
func DefaultCompiler() Compiler {
	return Compiler{
		NarrowJumpLimit:  127,
		JumpTableMinArms: 1,
		MaxNestingDepth:  1000,
		Specialize:       true,
	}
}

// Load parses a tickle.toml file from the given directory. Keys missing
// from the file keep their default values.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a tickle.toml file, then loads
// and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			c := Default()
			c.Dir, _ = filepath.Abs(startDir)
			return c, nil
		}
		dir = parent
	}
}

// Validate rejects settings outside their usable range.
func (c *Config) Validate() error {
	if c.Compiler.NarrowJumpLimit < 0 || c.Compiler.NarrowJumpLimit > 127 {
		return fmt.Errorf("compiler.narrow-jump-limit must be in 0..127, got %d", c.Compiler.NarrowJumpLimit)
	}
	if c.Compiler.JumpTableMinArms < 1 {
		return fmt.Errorf("compiler.jump-table-min-arms must be at least 1, got %d", c.Compiler.JumpTableMinArms)
	}
	if c.Compiler.MaxNestingDepth < 1 {
		return fmt.Errorf("compiler.max-nesting-depth must be positive, got %d", c.Compiler.MaxNestingDepth)
	}
	return nil
}

// CachePath returns the absolute path of the cache database.
func (c *Config) CachePath() string {
	if filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	return filepath.Join(c.Dir, c.Cache.Path)
}

// LogFile returns the log file path, or nil to log to stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}
