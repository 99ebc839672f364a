package taint

import (
	"fmt"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Vulnerability wraps a flow with its security classification.
type Vulnerability struct {
	ID          string
	Category    Category
	Name        string
	CWE         string
	Severity    Severity
	Description string
	Remediation string
	Flow        Flow
}

var categoryNames = map[Category]string{
	CategorySQLInjection:      "SQL Injection",
	CategoryCommandInjection:  "Command Injection",
	CategoryCodeInjection:     "Code Injection",
	CategoryDeserialization:   "Unsafe Deserialization",
	CategoryPathTraversal:     "Path Traversal",
	CategoryTemplateInjection: "Server-Side Template Injection",
	CategorySSRF:              "Server-Side Request Forgery",
	CategoryLogInjection:      "Log Injection",
}

var categoryRemediation = map[Category]string{
	CategorySQLInjection:      "Use parameterized queries or an ORM instead of string-built SQL.",
	CategoryCommandInjection:  "Avoid shell invocation; pass an argument list to subprocess with shell=False.",
	CategoryCodeInjection:     "Never evaluate user-controlled strings; use a safe expression parser or a dispatch table.",
	CategoryDeserialization:   "Only deserialize trusted data; prefer json.loads or yaml.safe_load.",
	CategoryPathTraversal:     "Resolve paths against an allow-listed base directory and reject traversal components.",
	CategoryTemplateInjection: "Render user data as template context variables, never as template source.",
	CategorySSRF:              "Validate target hosts against an allow list before issuing requests.",
	CategoryLogInjection:      "Strip newlines from user data before logging, or log structured fields.",
}

// SeverityFor follows the exploitability of the sink class: direct code
// or query execution is HIGH, data exposure paths MEDIUM, everything
// else LOW.
func SeverityFor(cat Category) Severity {
	switch cat {
	case CategorySQLInjection, CategoryCommandInjection, CategoryCodeInjection, CategoryDeserialization:
		return SeverityHigh
	case CategoryPathTraversal, CategoryTemplateInjection, CategorySSRF:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Classify converts traced flows into vulnerability records with stable
// human-readable descriptions.
func Classify(flows []Flow) []Vulnerability {
	vulns := make([]Vulnerability, 0, len(flows))
	for _, f := range flows {
		name := categoryNames[f.Category]
		if name == "" {
			name = string(f.Category)
		}
		vulns = append(vulns, Vulnerability{
			ID:       uuid.NewString(),
			Category: f.Category,
			Name:     name,
			CWE:      f.CWE,
			Severity: SeverityFor(f.Category),
			Description: fmt.Sprintf("%s: %s reaches %s() in %s.%s (line %d), originating in %s.%s (line %d)",
				name, f.TaintedData, f.SinkCallee, f.SinkModule, f.SinkFunction, f.SinkLine,
				f.SourceModule, f.SourceFunction, f.SourceLine),
			Remediation: categoryRemediation[f.Category],
			Flow:        f,
		})
	}
	return vulns
}
