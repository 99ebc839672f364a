package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flowscope/internal/graph"
	"flowscope/internal/parser"
	"flowscope/internal/taint"
)

func buildFixture(t *testing.T, files map[string]string) (*graph.DependencyGraph, *graph.BuildResult) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	b, err := graph.NewBuilder(dir, parser.NewParser(parser.NewGrammarLoader()), graph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	g, result, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return g, result
}

func TestDOTGenerator(t *testing.T) {
	g, result := buildFixture(t, map[string]string{
		"a.py": "import b\n",
		"b.py": "import a\n",
		"c.py": "import b\n",
	})

	flows := []taint.Flow{{SourceModule: "c", SinkModule: "b"}}
	out, err := NewDOTGenerator(g).Generate(result.Cycles, flows)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out, "digraph dependencies {") {
		t.Error("missing digraph header")
	}
	if !strings.Contains(out, "CYCLE") {
		t.Error("cycle edge not tagged")
	}
	if !strings.Contains(out, `"c" -> "b" [color="darkorange", style=dashed, label="taint"]`) {
		t.Errorf("taint overlay edge missing:\n%s", out)
	}
	if !strings.Contains(out, "mistyrose") {
		t.Error("cycle members not highlighted")
	}
}

func TestDOTGenerator_RequiresBuiltGraph(t *testing.T) {
	if _, err := NewDOTGenerator(&graph.DependencyGraph{}).Generate(nil, nil); err == nil {
		t.Error("unbuilt graph should error")
	}
}

func TestMarkdownGenerator(t *testing.T) {
	data := MarkdownReportData{
		ProjectRoot: "/tmp/demo",
		ScanID:      "scan-42",
		ModuleCount: 3,
		ImportCount: 2,
		Cycles:      []graph.Cycle{{Modules: []string{"a", "b"}, Severity: "warning"}},
		Vulnerabilities: []taint.Vulnerability{
			{
				Name:        "SQL Injection",
				CWE:         "CWE-89",
				Severity:    taint.SeverityHigh,
				Description: "user input reaches cursor.execute",
				Remediation: "Use parameterized queries.",
				Flow: taint.Flow{
					SourceModule: "io_mod", SourceFunction: "read_input", SourceLine: 2,
					SinkModule: "db_mod", SinkFunction: "run_query", SinkLine: 7,
					Path: []taint.Hop{
						{Module: "io_mod", Function: "read_input", Line: 2},
						{Module: "db_mod", Function: "run_query", Line: 7},
					},
				},
			},
		},
		Flows:    []taint.Flow{{}},
		Warnings: []string{"parse failure in junk.py"},
	}

	out, err := NewMarkdownGenerator().Generate(data, MarkdownReportOptions{
		Version:     "1.0.0",
		GeneratedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"title: Taint Analysis Report",
		"scan: scan-42",
		"### HIGH",
		"#### SQL Injection (CWE-89)",
		"| Source | `io_mod` | `read_input` | 2 |",
		"| Sink | `db_mod` | `run_query` | 7 |",
		"`io_mod.read_input:2` → `db_mod.run_query:7`",
		"Remediation: Use parameterized queries.",
		"1. `a -> b -> a`",
		"- parse failure in junk.py",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdownGenerator_CleanProject(t *testing.T) {
	out, err := NewMarkdownGenerator().Generate(MarkdownReportData{ModuleCount: 1}, MarkdownReportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No taint flows reached a dangerous sink.") {
		t.Error("clean project summary missing")
	}
	if !strings.Contains(out, "None detected.") {
		t.Error("clean cycle section missing")
	}
}
