// Package output renders analysis reports for the CLI. It depends only on
// the Report shape, never on the analysis pipeline internals.
package output

import (
	"io"
	"time"

	"github.com/formhawk/formhawk/internal/analyzer"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteReport writes one per-document report.
	WriteReport(report *analyzer.Report) error

	// WriteError records a failed single-target analysis. Failures are
	// reported as distinct entries rather than crashing the run.
	WriteError(target string, err error) error

	// WriteSummary writes the end-of-scan summary and, for buffered
	// formats, the collected reports.
	WriteSummary(summary *Summary) error

	// Flush flushes any buffered output.
	Flush() error

	// Close closes the writer.
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string `json:"format" yaml:"format"` // "json" or "text"
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Stream bool   `json:"stream" yaml:"stream"`

	// FilePath directs output to a file instead of stdout when set.
	FilePath string `json:"file_path" yaml:"file_path"`
}

// Summary aggregates a whole scan run.
type Summary struct {
	Targets       int           `json:"targets"`
	Analyzed      int           `json:"analyzed"`
	Failed        int           `json:"failed"`
	Forms         int           `json:"forms"`
	Protected     int           `json:"protected"`
	Missing       int           `json:"missing"`
	Weak          int           `json:"weak"`
	NotApplicable int           `json:"not_applicable"`
	HighFindings  int           `json:"high_findings"`
	Duration      time.Duration `json:"duration"`
}

// ExitCode returns the process exit code for the summary: 0 when no
// HIGH-severity findings, 1 otherwise. Policy decision owned by the CLI
// layer, kept next to the summary it derives from.
func (s *Summary) ExitCode() int {
	if s.HighFindings > 0 {
		return 1
	}
	return 0
}

// Add folds one report into the summary.
func (s *Summary) Add(report *analyzer.Report) {
	s.Analyzed++
	s.Forms += report.Stats.Forms
	s.Protected += report.Stats.Protected
	s.Missing += report.Stats.Missing
	s.Weak += report.Stats.Weak
	s.NotApplicable += report.Stats.NotApplicable
	if report.HasHighFindings() {
		s.HighFindings++
	}
}

// NewWriter creates an output writer for the configured format.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "json":
		return NewJSONWriter(w, config.Pretty, config.Stream)
	default:
		return NewTextWriter(w)
	}
}
