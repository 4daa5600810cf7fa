package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/formhawk/formhawk/internal/analyzer"
)

// TextWriter writes human-readable output.
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{writer: w}
}

// WriteReport renders one document's verdicts.
func (t *TextWriter) WriteReport(report *analyzer.Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	fmt.Fprintf(t.writer, "\n%s\n", report.Source)
	if len(report.Verdicts) == 0 {
		fmt.Fprintln(t.writer, "  no forms found")
		return nil
	}

	for _, v := range report.Verdicts {
		action := v.Action
		if action == "" {
			action = "(current page)"
		}
		fmt.Fprintf(t.writer, "  Form %d: [%s] %s\n", v.FormIndex+1, v.Method, action)
		fmt.Fprintf(t.writer, "    %s %s\n", statusMarker(v.Status), verdictLine(v))
		for _, reason := range v.Reasons {
			fmt.Fprintf(t.writer, "      - %s\n", reason)
		}
	}
	return nil
}

// WriteError renders a failed target as a distinct entry.
func (t *TextWriter) WriteError(target string, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	fmt.Fprintf(t.writer, "\n%s\n  analysis failed: %v\n", target, err)
	return nil
}

// WriteSummary renders the end-of-scan summary.
func (t *TextWriter) WriteSummary(summary *Summary) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	fmt.Fprintf(t.writer, "\nScanned %d target(s) in %v: %d analyzed, %d failed\n",
		summary.Targets, summary.Duration.Round(time.Millisecond), summary.Analyzed, summary.Failed)
	fmt.Fprintf(t.writer, "Forms: %d total, %d protected, %d missing, %d weak, %d not applicable\n",
		summary.Forms, summary.Protected, summary.Missing, summary.Weak, summary.NotApplicable)
	if summary.HighFindings > 0 {
		fmt.Fprintf(t.writer, "HIGH severity findings on %d target(s)\n", summary.HighFindings)
	}
	return nil
}

// Flush flushes the writer.
func (t *TextWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if flusher, ok := t.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if closer, ok := t.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func statusMarker(s analyzer.Status) string {
	switch s {
	case analyzer.StatusProtected:
		return "[+]"
	case analyzer.StatusMissing:
		return "[!]"
	case analyzer.StatusWeak:
		return "[~]"
	default:
		return "[ ]"
	}
}

func verdictLine(v analyzer.Verdict) string {
	switch v.Status {
	case analyzer.StatusProtected:
		return fmt.Sprintf("%s (%s): anti-CSRF token present and sound", v.Status, v.Severity)
	case analyzer.StatusMissing:
		return fmt.Sprintf("%s (%s): no anti-CSRF token found on a state-changing form", v.Status, v.Severity)
	case analyzer.StatusWeak:
		return fmt.Sprintf("%s (%s): token present but fails quality checks", v.Status, v.Severity)
	default:
		return fmt.Sprintf("%s (%s): form is not state-changing", v.Status, v.Severity)
	}
}
