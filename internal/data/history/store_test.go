package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoadScan(t *testing.T) {
	s := openTestStore(t)

	scan := ScanRecord{
		ID:                 "scan-1",
		Timestamp:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ModuleCount:        12,
		ImportCount:        30,
		CycleCount:         1,
		FlowCount:          2,
		VulnerabilityCount: 2,
		HighCount:          1,
		MediumCount:        1,
		DurationMS:         420,
	}
	vulns := []VulnRecord{
		{ScanID: "scan-1", Category: "sql-injection", CWE: "CWE-89", Severity: "HIGH", SourceModule: "io_mod", SourceLine: 2, SinkModule: "db_mod", SinkLine: 7, SinkCallee: "cursor.execute"},
		{ScanID: "scan-1", Category: "path-traversal", CWE: "CWE-22", Severity: "MEDIUM", SourceModule: "web", SourceLine: 9, SinkModule: "files", SinkLine: 3, SinkCallee: "open"},
	}
	if err := s.SaveScan(scan, vulns); err != nil {
		t.Fatal(err)
	}

	scans, err := s.LoadScans("", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 1 {
		t.Fatalf("scans = %d, want 1", len(scans))
	}
	got := scans[0]
	if got.ID != "scan-1" || got.ProjectKey != "default" {
		t.Errorf("scan = %+v", got)
	}
	if got.ModuleCount != 12 || got.HighCount != 1 || got.DurationMS != 420 {
		t.Errorf("counts lost: %+v", got)
	}
	if !got.Timestamp.Equal(scan.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, scan.Timestamp)
	}

	loaded, err := s.LoadVulnerabilities("scan-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("vulns = %d, want 2", len(loaded))
	}
	for _, v := range loaded {
		if v.ScanID != "scan-1" {
			t.Errorf("vuln not attached to scan: %+v", v)
		}
	}
}

func TestStore_LoadScansSince(t *testing.T) {
	s := openTestStore(t)

	old := ScanRecord{ID: "old", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	recent := ScanRecord{ID: "recent", Timestamp: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	if err := s.SaveScan(old, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveScan(recent, nil); err != nil {
		t.Fatal(err)
	}

	scans, err := s.LoadScans("default", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(scans) != 1 || scans[0].ID != "recent" {
		t.Errorf("scans = %+v, want only the recent one", scans)
	}
}

func TestStore_RejectsEmptyID(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveScan(ScanRecord{}, nil); err == nil {
		t.Error("empty scan id should be rejected")
	}
}

func TestOpen_RejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("directory path should be rejected")
	}
}
