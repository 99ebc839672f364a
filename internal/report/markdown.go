package report

import (
	"fmt"
	"strings"
	"time"

	"flowscope/internal/graph"
	"flowscope/internal/taint"
)

type MarkdownReportData struct {
	ProjectRoot     string
	ScanID          string
	ModuleCount     int
	ImportCount     int
	Cycles          []graph.Cycle
	Flows           []taint.Flow
	Vulnerabilities []taint.Vulnerability
	Warnings        []string
}

type MarkdownReportOptions struct {
	Version     string
	GeneratedAt time.Time
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(data MarkdownReportData, opts MarkdownReportOptions) (string, error) {
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Taint Analysis Report\n")
	b.WriteString("project: " + nonEmpty(data.ProjectRoot, "unknown") + "\n")
	b.WriteString("scan: " + nonEmpty(data.ScanID, "unknown") + "\n")
	b.WriteString("generated_at: " + opts.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Taint Analysis Report\n\n")

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Modules | %d |\n", data.ModuleCount))
	b.WriteString(fmt.Sprintf("| Import Edges | %d |\n", data.ImportCount))
	b.WriteString(fmt.Sprintf("| Import Cycles | %d |\n", len(data.Cycles)))
	b.WriteString(fmt.Sprintf("| Taint Flows | %d |\n", len(data.Flows)))
	high, medium, low := countBySeverity(data.Vulnerabilities)
	b.WriteString(fmt.Sprintf("| HIGH Findings | %d |\n", high))
	b.WriteString(fmt.Sprintf("| MEDIUM Findings | %d |\n", medium))
	b.WriteString(fmt.Sprintf("| LOW Findings | %d |\n\n", low))

	b.WriteString("## Vulnerabilities\n")
	if len(data.Vulnerabilities) == 0 {
		b.WriteString("No taint flows reached a dangerous sink.\n\n")
	} else {
		for _, sev := range []taint.Severity{taint.SeverityHigh, taint.SeverityMedium, taint.SeverityLow} {
			group := filterBySeverity(data.Vulnerabilities, sev)
			if len(group) == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("### %s\n\n", sev))
			for _, v := range group {
				b.WriteString(fmt.Sprintf("#### %s (%s)\n\n", v.Name, v.CWE))
				b.WriteString(v.Description + "\n\n")
				b.WriteString("| | Module | Function | Line |\n")
				b.WriteString("| --- | --- | --- | --- |\n")
				b.WriteString(fmt.Sprintf("| Source | `%s` | `%s` | %d |\n", v.Flow.SourceModule, v.Flow.SourceFunction, v.Flow.SourceLine))
				b.WriteString(fmt.Sprintf("| Sink | `%s` | `%s` | %d |\n\n", v.Flow.SinkModule, v.Flow.SinkFunction, v.Flow.SinkLine))
				if len(v.Flow.Path) > 0 {
					b.WriteString("Path: ")
					hops := make([]string, 0, len(v.Flow.Path))
					for _, h := range v.Flow.Path {
						hops = append(hops, fmt.Sprintf("`%s.%s:%d`", h.Module, h.Function, h.Line))
					}
					b.WriteString(strings.Join(hops, " → ") + "\n\n")
				}
				if v.Remediation != "" {
					b.WriteString("Remediation: " + v.Remediation + "\n\n")
				}
			}
		}
	}

	b.WriteString("## Circular Imports\n")
	if len(data.Cycles) == 0 {
		b.WriteString("None detected.\n\n")
	} else {
		for i, c := range data.Cycles {
			b.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, strings.Join(append(append([]string{}, c.Modules...), c.Modules[0]), " -> ")))
		}
		b.WriteString("\n")
	}

	if len(data.Warnings) > 0 {
		b.WriteString("## Warnings\n")
		for _, w := range data.Warnings {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func countBySeverity(vulns []taint.Vulnerability) (high, medium, low int) {
	for _, v := range vulns {
		switch v.Severity {
		case taint.SeverityHigh:
			high++
		case taint.SeverityMedium:
			medium++
		default:
			low++
		}
	}
	return
}

func filterBySeverity(vulns []taint.Vulnerability, sev taint.Severity) []taint.Vulnerability {
	out := make([]taint.Vulnerability, 0, len(vulns))
	for _, v := range vulns {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
