package history

import "time"

const SchemaVersion = 1

// ScanRecord is one persisted analysis run.
type ScanRecord struct {
	ID                 string    `json:"id"`
	ProjectKey         string    `json:"project_key"`
	Timestamp          time.Time `json:"timestamp"`
	ModuleCount        int       `json:"module_count"`
	ImportCount        int       `json:"import_count"`
	CycleCount         int       `json:"cycle_count"`
	FlowCount          int       `json:"flow_count"`
	VulnerabilityCount int       `json:"vulnerability_count"`
	HighCount          int       `json:"high_count"`
	MediumCount        int       `json:"medium_count"`
	LowCount           int       `json:"low_count"`
	DurationMS         int64     `json:"duration_ms"`
}

// VulnRecord is one finding attached to a scan, enough to diff runs
// without re-analyzing.
type VulnRecord struct {
	ScanID       string `json:"scan_id"`
	Category     string `json:"category"`
	CWE          string `json:"cwe"`
	Severity     string `json:"severity"`
	SourceModule string `json:"source_module"`
	SourceLine   int    `json:"source_line"`
	SinkModule   string `json:"sink_module"`
	SinkLine     int    `json:"sink_line"`
	SinkCallee   string `json:"sink_callee"`
	Description  string `json:"description"`
}
