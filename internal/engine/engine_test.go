package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowscope/internal/config"
	"flowscope/internal/taint"
)

func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func vulnerableFixture(t *testing.T) string {
	return writeFixture(t, map[string]string{
		"io_mod.py": `def read_input():
    data = input()
    return data
`,
		"db_mod.py": `def run_query(sql):
    cursor.execute(sql)
`,
		"app_mod.py": `from io_mod import read_input
from db_mod import run_query


def main():
    q = read_input()
    run_query(q)
`,
	})
}

func TestEngine_Scan(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectRoot = vulnerableFixture(t)

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Scan(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.True(t, rep.Build.Success)
	assert.Equal(t, 3, rep.Build.ModuleCount)
	assert.True(t, rep.OrderComplete)
	assert.Len(t, rep.TopologicalOrder, 3)

	require.NotNil(t, rep.Analysis)
	require.Len(t, rep.Analysis.Vulnerabilities, 1)
	assert.Equal(t, taint.SeverityHigh, rep.Analysis.Vulnerabilities[0].Severity)

	assert.NotNil(t, e.Graph())
	assert.Equal(t, rep, e.LastReport())
}

func TestEngine_WritesOutputs(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Default()
	cfg.ProjectRoot = vulnerableFixture(t)
	cfg.Output.DOT = filepath.Join(outDir, "deps.dot")
	cfg.Output.Markdown = filepath.Join(outDir, "report.md")

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Scan(context.Background())
	require.NoError(t, err)

	dot, err := os.ReadFile(cfg.Output.DOT)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "digraph dependencies")

	md, err := os.ReadFile(cfg.Output.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "SQL Injection")
}

func TestEngine_PersistsHistory(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectRoot = vulnerableFixture(t)
	cfg.History.Path = filepath.Join(t.TempDir(), "scans.db")

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Scan(context.Background())
	require.NoError(t, err)

	scans, err := e.History(time.Time{})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, rep.ID, scans[0].ID)
	assert.Equal(t, 1, scans[0].HighCount)
	assert.Equal(t, 3, scans[0].ModuleCount)
}

func TestEngine_LowSeverityFilter(t *testing.T) {
	files := map[string]string{
		"app.py": `import logging

name = input()
logging.info(name)
`,
	}

	cfg := config.Default()
	cfg.ProjectRoot = writeFixture(t, files)

	e, err := New(cfg, nil)
	require.NoError(t, err)
	rep, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Analysis.Vulnerabilities, "LOW findings are dropped by default")
	require.NoError(t, e.Close())

	cfg = config.Default()
	cfg.ProjectRoot = writeFixture(t, files)
	cfg.Analysis.IncludeLowSev = true

	e, err = New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()
	rep, err = e.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Analysis.Vulnerabilities, 1)
	assert.Equal(t, taint.SeverityLow, rep.Analysis.Vulnerabilities[0].Severity)
}

func TestEngine_EmptyProject(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectRoot = t.TempDir()

	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Scan(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Build.Success)
	assert.Nil(t, rep.Analysis)
}

func TestEngine_InvalidRoot(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectRoot = filepath.Join(t.TempDir(), "missing")

	_, err := New(cfg, nil)
	require.Error(t, err)
}
