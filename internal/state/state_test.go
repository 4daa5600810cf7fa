package state

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/formhawk/formhawk/internal/analyzer"
)

// =============================================================================
// Deduplicator Tests
// =============================================================================

func TestDeduplicator_AddAndHasSeen(t *testing.T) {
	d := NewDeduplicator(1000)

	if d.HasSeen("https://example.com/a") {
		t.Error("HasSeen() = true before Add")
	}

	d.Add("https://example.com/a")
	if !d.HasSeen("https://example.com/a") {
		t.Error("HasSeen() = false after Add")
	}
	if d.HasSeen("https://example.com/b") {
		t.Error("HasSeen() = true for unseen target")
	}
}

func TestDeduplicator_CountIgnoresDuplicates(t *testing.T) {
	d := NewDeduplicator(10)

	for i := 0; i < 5; i++ {
		d.Add("https://example.com/same")
	}
	d.Add("https://example.com/other")

	if d.Count() != 2 {
		t.Errorf("Count() = %d, want 2", d.Count())
	}
}

func TestDeduplicator_Reset(t *testing.T) {
	d := NewDeduplicator(10)
	d.Add("https://example.com/a")
	d.Reset()

	if d.Count() != 0 {
		t.Errorf("Count() = %d after Reset, want 0", d.Count())
	}
	if d.HasSeen("https://example.com/a") {
		t.Error("HasSeen() = true after Reset")
	}
}

func TestDeduplicator_ManyTargets(t *testing.T) {
	d := NewDeduplicator(1000)

	for i := 0; i < 1000; i++ {
		d.Add(fmt.Sprintf("https://example.com/page%d", i))
	}
	if d.Count() != 1000 {
		t.Errorf("Count() = %d, want 1000", d.Count())
	}

	// The exact map backstops the filter: no false positives.
	for i := 0; i < 100; i++ {
		if d.HasSeen(fmt.Sprintf("https://other.example/page%d", i)) {
			t.Fatalf("false positive for unseen target %d", i)
		}
	}
}

// =============================================================================
// ReportStore Tests
// =============================================================================

func openTestStore(t *testing.T) *ReportStore {
	t.Helper()
	store, err := NewReportStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("NewReportStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReportStore_PutGet(t *testing.T) {
	store := openTestStore(t)

	report := &analyzer.Report{
		Source: "https://example.com/login",
		Verdicts: []analyzer.Verdict{
			{FormIndex: 0, Method: "POST", Status: analyzer.StatusMissing, Severity: analyzer.SeverityHigh},
		},
		Stats: analyzer.ReportStats{Forms: 1, Missing: 1},
	}

	if err := store.Put("https://example.com/login", report); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get("https://example.com/login")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want stored report")
	}
	if got.Source != report.Source {
		t.Errorf("Source = %q, want %q", got.Source, report.Source)
	}
	if len(got.Verdicts) != 1 || got.Verdicts[0].Status != analyzer.StatusMissing {
		t.Errorf("Verdicts = %+v, want one MISSING verdict", got.Verdicts)
	}
	if got.Stats.Missing != 1 {
		t.Errorf("Stats.Missing = %d, want 1", got.Stats.Missing)
	}
}

func TestReportStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get("https://example.com/unknown")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil for unknown target", got)
	}
	if store.Has("https://example.com/unknown") {
		t.Error("Has() = true for unknown target")
	}
}

func TestReportStore_Targets(t *testing.T) {
	store := openTestStore(t)

	targets := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	for _, target := range targets {
		if err := store.Put(target, &analyzer.Report{Source: target}); err != nil {
			t.Fatalf("Put(%s) error = %v", target, err)
		}
	}

	got, err := store.Targets()
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	if len(got) != len(targets) {
		t.Fatalf("len(Targets()) = %d, want %d", len(got), len(targets))
	}
	// bbolt iterates keys in byte order.
	for i, want := range targets {
		if got[i] != want {
			t.Errorf("Targets()[%d] = %q, want %q", i, got[i], want)
		}
	}
}

func TestReportStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")

	store, err := NewReportStore(path)
	if err != nil {
		t.Fatalf("NewReportStore() error = %v", err)
	}
	if err := store.Put("https://example.com/a", &analyzer.Report{Source: "https://example.com/a"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewReportStore(path)
	if err != nil {
		t.Fatalf("NewReportStore() reopen error = %v", err)
	}
	defer reopened.Close()

	if !reopened.Has("https://example.com/a") {
		t.Error("stored report lost across reopen")
	}
}
