package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store persists scan records to a local sqlite file. A single connection
// plus WAL keeps watch-mode writers from tripping over each other.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveScan writes a scan and its findings in one transaction.
func (s *Store) SaveScan(scan ScanRecord, vulns []VulnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(scan.ID) == "" {
		return fmt.Errorf("scan id must not be empty")
	}
	if scan.ProjectKey == "" {
		scan.ProjectKey = "default"
	}
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save scan", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`
INSERT INTO scans (
  id, project_key, schema_version, ts_utc, module_count, import_count, cycle_count,
  flow_count, vulnerability_count, high_count, medium_count, low_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			scan.ID,
			scan.ProjectKey,
			SchemaVersion,
			scan.Timestamp.UTC().Format(time.RFC3339Nano),
			scan.ModuleCount,
			scan.ImportCount,
			scan.CycleCount,
			scan.FlowCount,
			scan.VulnerabilityCount,
			scan.HighCount,
			scan.MediumCount,
			scan.LowCount,
			scan.DurationMS,
		); err != nil {
			_ = tx.Rollback()
			return err
		}

		for _, v := range vulns {
			if _, err := tx.Exec(`
INSERT INTO scan_vulnerabilities (
  scan_id, category, cwe, severity, source_module, source_line,
  sink_module, sink_line, sink_callee, description
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
				scan.ID,
				v.Category,
				v.CWE,
				v.Severity,
				v.SourceModule,
				v.SourceLine,
				v.SinkModule,
				v.SinkLine,
				v.SinkCallee,
				v.Description,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		return tx.Commit()
	})
}

// LoadScans returns scans for a project since the given time, oldest first.
func (s *Store) LoadScans(projectKey string, since time.Time) ([]ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if projectKey == "" {
		projectKey = "default"
	}

	query := `
SELECT id, project_key, ts_utc, module_count, import_count, cycle_count,
       flow_count, vulnerability_count, high_count, medium_count, low_count, duration_ms
FROM scans
WHERE project_key = ?`
	args := []any{projectKey}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, id ASC"

	var rows *sql.Rows
	err := s.withRetry("load scans", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := make([]ScanRecord, 0)
	for rows.Next() {
		var (
			tsRaw string
			scan  ScanRecord
		)
		if err := rows.Scan(
			&scan.ID,
			&scan.ProjectKey,
			&tsRaw,
			&scan.ModuleCount,
			&scan.ImportCount,
			&scan.CycleCount,
			&scan.FlowCount,
			&scan.VulnerabilityCount,
			&scan.HighCount,
			&scan.MediumCount,
			&scan.LowCount,
			&scan.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse scan timestamp %q: %w", tsRaw, err)
		}
		scan.Timestamp = ts.UTC()
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan rows: %w", err)
	}

	return scans, nil
}

// LoadVulnerabilities returns the findings of a single scan.
func (s *Store) LoadVulnerabilities(scanID string) ([]VulnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load vulnerabilities", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT scan_id, category, cwe, severity, source_module, source_line,
       sink_module, sink_line, sink_callee, description
FROM scan_vulnerabilities
WHERE scan_id = ?
ORDER BY severity ASC, sink_module ASC, sink_line ASC
`, scanID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vulns := make([]VulnRecord, 0)
	for rows.Next() {
		var v VulnRecord
		if err := rows.Scan(
			&v.ScanID,
			&v.Category,
			&v.CWE,
			&v.Severity,
			&v.SourceModule,
			&v.SourceLine,
			&v.SinkModule,
			&v.SinkLine,
			&v.SinkCallee,
			&v.Description,
		); err != nil {
			return nil, fmt.Errorf("vulnerability row: %w", err)
		}
		vulns = append(vulns, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vulnerability rows: %w", err)
	}

	return vulns, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}
