package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowscope.toml")
	content := `
project_root = "/tmp"

[exclude]
dirs = [".git", "venv"]

[analysis]
max_depth = 5
workers = 2

[watch]
debounce = "250ms"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ProjectRoot != "/tmp" {
		t.Errorf("ProjectRoot = %q", cfg.ProjectRoot)
	}
	if len(cfg.Exclude.Dirs) != 2 {
		t.Errorf("Exclude.Dirs = %v", cfg.Exclude.Dirs)
	}
	if cfg.Analysis.MaxDepth != 5 {
		t.Errorf("MaxDepth = %d", cfg.Analysis.MaxDepth)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Watch.Debounce)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Analysis.MaxDepth != 10 {
		t.Errorf("default MaxDepth = %d", cfg.Analysis.MaxDepth)
	}
	if cfg.Analysis.Workers <= 0 {
		t.Error("default Workers should be positive")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("default exclude dirs should not be empty")
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("default Debounce = %v", cfg.Watch.Debounce)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ProjectRoot = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate on temp dir: %v", err)
	}

	cfg.ProjectRoot = filepath.Join(cfg.ProjectRoot, "does-not-exist")
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing root")
	}
}
