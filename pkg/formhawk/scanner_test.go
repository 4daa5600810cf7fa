package formhawk

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formhawk/formhawk/internal/analyzer"
)

const protectedPage = `
<html><body>
	<form action="/login" method="post">
		<input type="hidden" name="csrf_token" value="abcdefghijklmnopqrstuvwxyz012345">
		<input type="text" name="username">
	</form>
</body></html>
`

const unprotectedPage = `
<html><body>
	<form action="/transfer" method="post">
		<input type="text" name="amount">
	</form>
</body></html>
`

func writeTempPage(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// =============================================================================
// Scanner Construction Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.config.Workers != 10 {
		t.Errorf("Workers = %d, want 10", s.config.Workers)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Output.Format = "xml"

	if _, err := New(WithConfig(config)); err == nil {
		t.Error("New() error = nil, want validation failure before any scan")
	}
}

func TestNew_Options(t *testing.T) {
	s, err := New(
		WithWorkers(3),
		WithMinTokenLength(24),
		WithEntropyThreshold(2.5),
		WithTokenNamePatterns("csrf", "mytoken"),
		WithFormat("json"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if s.config.Workers != 3 {
		t.Errorf("Workers = %d, want 3", s.config.Workers)
	}
	if s.config.Analysis.MinTokenLength != 24 {
		t.Errorf("MinTokenLength = %d, want 24", s.config.Analysis.MinTokenLength)
	}
	if s.config.Analysis.EntropyThreshold != 2.5 {
		t.Errorf("EntropyThreshold = %v, want 2.5", s.config.Analysis.EntropyThreshold)
	}
	if s.config.Output.Format != "json" {
		t.Errorf("Format = %q, want json", s.config.Output.Format)
	}
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScanner_Scan_LocalFile(t *testing.T) {
	path := writeTempPage(t, protectedPage)

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Scan(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(result.Reports) != 1 {
		t.Fatalf("len(Reports) = %d, want 1", len(result.Reports))
	}
	report := result.Reports[0]
	if report.Source != path {
		t.Errorf("Source = %q, want %q", report.Source, path)
	}
	if report.Stats.Protected != 1 {
		t.Errorf("Stats.Protected = %d, want 1", report.Stats.Protected)
	}
	if len(report.Verdicts) != 1 || report.Verdicts[0].Status != analyzer.StatusProtected {
		t.Errorf("Verdicts = %+v, want one PROTECTED verdict", report.Verdicts)
	}
	if result.HasHighFindings() {
		t.Error("HasHighFindings() = true for a protected form")
	}
	if result.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", result.ExitCode())
	}
	if !strings.Contains(buf.String(), "PROTECTED") {
		t.Errorf("output missing verdict:\n%s", buf.String())
	}
}

func TestScanner_Scan_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, unprotectedPage)
	}))
	defer server.Close()

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf), WithWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Scan(context.Background(), []string{server.URL})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(result.Reports) != 1 {
		t.Fatalf("len(Reports) = %d, want 1", len(result.Reports))
	}
	if result.Reports[0].Stats.Missing != 1 {
		t.Errorf("Stats.Missing = %d, want 1", result.Reports[0].Stats.Missing)
	}
	if !result.HasHighFindings() {
		t.Error("HasHighFindings() = false for an unprotected state-changing form")
	}
	if result.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", result.ExitCode())
	}
}

func TestScanner_Scan_DeduplicatesTargets(t *testing.T) {
	path := writeTempPage(t, protectedPage)

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Scan(context.Background(), []string{path, path, path})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(result.Reports) != 1 {
		t.Errorf("len(Reports) = %d, want 1 (duplicates collapsed)", len(result.Reports))
	}
	if result.Summary.Targets != 1 {
		t.Errorf("Summary.Targets = %d, want 1", result.Summary.Targets)
	}
}

func TestScanner_Scan_FailedTargetIsCollected(t *testing.T) {
	goodPath := writeTempPage(t, protectedPage)
	badPath := filepath.Join(t.TempDir(), "does-not-exist.html")

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Scan(context.Background(), []string{goodPath, badPath})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(result.Reports) != 1 {
		t.Errorf("len(Reports) = %d, want 1", len(result.Reports))
	}
	if len(result.Errors) != 1 || result.Errors[0].Target != badPath {
		t.Errorf("Errors = %+v, want one entry for the missing file", result.Errors)
	}
	if result.Summary.Failed != 1 {
		t.Errorf("Summary.Failed = %d, want 1", result.Summary.Failed)
	}
}

func TestScanner_Scan_OrderedResults(t *testing.T) {
	pages := make([]string, 0, 4)
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf("page%d.html", i))
		if err := os.WriteFile(path, []byte(protectedPage), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		pages = append(pages, path)
	}

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf), WithWorkers(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := s.Scan(context.Background(), pages)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(result.Reports) != 4 {
		t.Fatalf("len(Reports) = %d, want 4", len(result.Reports))
	}
	for i := 1; i < len(result.Reports); i++ {
		if result.Reports[i-1].Source > result.Reports[i].Source {
			t.Errorf("reports not sorted by source: %q > %q",
				result.Reports[i-1].Source, result.Reports[i].Source)
		}
	}
}

func TestScanner_Scan_JSONStream(t *testing.T) {
	path := writeTempPage(t, unprotectedPage)

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf), WithFormat("json"), WithPrettyOutput(false), WithStreamMode(true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.Scan(context.Background(), []string{path}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2 (report + summary):\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"type":"report"`) {
		t.Errorf("lines[0] = %s, want a report event", lines[0])
	}
	if !strings.Contains(lines[1], `"type":"summary"`) {
		t.Errorf("lines[1] = %s, want a summary event", lines[1])
	}
}

func TestScanner_Scan_ResumeFromStateFile(t *testing.T) {
	page := writeTempPage(t, unprotectedPage)
	statePath := filepath.Join(t.TempDir(), "scan.db")

	var buf bytes.Buffer
	first, err := New(WithOutput(&buf), WithStateFile(statePath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	firstResult, err := first.Scan(context.Background(), []string{page})
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	if len(firstResult.Reports) != 1 {
		t.Fatalf("len(Reports) = %d, want 1", len(firstResult.Reports))
	}

	// Replace the page with one that would score differently; the resumed
	// scan must answer from the stored report without re-reading the file.
	if err := os.WriteFile(page, []byte(protectedPage), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var buf2 bytes.Buffer
	second, err := New(WithOutput(&buf2), WithStateFile(statePath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	secondResult, err := second.Scan(context.Background(), []string{page})
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}

	if len(secondResult.Reports) != 1 {
		t.Fatalf("len(Reports) = %d, want 1", len(secondResult.Reports))
	}
	if secondResult.Reports[0].Stats.Missing != 1 {
		t.Errorf("resumed report Stats = %+v, want the stored MISSING verdict", secondResult.Reports[0].Stats)
	}
}

func TestScanner_Scan_Cancelled(t *testing.T) {
	path := writeTempPage(t, protectedPage)

	var buf bytes.Buffer
	s, err := New(WithOutput(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A pre-cancelled context must not hang; partial results are acceptable.
	result, _ := s.Scan(ctx, []string{path})
	if result == nil {
		t.Fatal("Scan() result = nil, want partial result on cancellation")
	}
}

func TestScanner_Scan_OutputFile(t *testing.T) {
	page := writeTempPage(t, protectedPage)
	outPath := filepath.Join(t.TempDir(), "report.txt")

	s, err := New(WithOutputFile(outPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Scan(context.Background(), []string{page}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "PROTECTED") {
		t.Errorf("output file missing verdict:\n%s", data)
	}
}

// =============================================================================
// Result Tests
// =============================================================================

func TestResult_ExitCode(t *testing.T) {
	r := &Result{}
	if r.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", r.ExitCode())
	}

	r.Summary.HighFindings = 2
	if r.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", r.ExitCode())
	}
	if !r.HasHighFindings() {
		t.Error("HasHighFindings() = false")
	}
}
