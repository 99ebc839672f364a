package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ProjectRoot string   `toml:"project_root"`
	Exclude     Exclude  `toml:"exclude"`
	Analysis    Analysis `toml:"analysis"`
	Watch       Watch    `toml:"watch"`
	Output      Output   `toml:"output"`
	History     History  `toml:"history"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Analysis struct {
	MaxDepth      int     `toml:"max_depth"`
	Workers       int     `toml:"workers"`
	ParseRate     float64 `toml:"parse_rate"`  // files per second, 0 disables throttling
	ParseBurst    int     `toml:"parse_burst"` //
	IncludeLowSev bool    `toml:"include_low_severity"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Output struct {
	DOT      string `toml:"dot"`
	Markdown string `toml:"markdown"`
}

type History struct {
	Path string `toml:"path"` // sqlite file, empty disables history
}

// DefaultExcludeDirs covers version control, virtual environments and
// the usual build/dependency caches.
func DefaultExcludeDirs() []string {
	return []string{
		".git",
		".hg",
		".svn",
		".venv",
		"venv",
		"env",
		"node_modules",
		"__pycache__",
		".tox",
		".mypy_cache",
		".pytest_cache",
		"build",
		"dist",
		"site-packages",
		".eggs",
	}
}

func Default() *Config {
	cfg := &Config{ProjectRoot: "."}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if len(c.Exclude.Dirs) == 0 {
		c.Exclude.Dirs = DefaultExcludeDirs()
	}
	if c.Analysis.MaxDepth <= 0 {
		c.Analysis.MaxDepth = 10
	}
	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = runtime.NumCPU()
	}
	if c.Analysis.ParseBurst <= 0 {
		c.Analysis.ParseBurst = 32
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	info, err := os.Stat(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("project root %q: %w", c.ProjectRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root %q is not a directory", c.ProjectRoot)
	}
	if c.Analysis.MaxDepth > 100 {
		return fmt.Errorf("max_depth %d is unreasonably large", c.Analysis.MaxDepth)
	}
	return nil
}
