package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/formhawk/formhawk/internal/analyzer"
)

// JSONWriter writes output in JSON format. In stream mode every report and
// error is emitted as its own event line; otherwise everything is buffered
// and written as a single document with the summary.
type JSONWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	pretty  bool
	stream  bool
	closed  bool
	reports []*analyzer.Report
	errs    []TargetError
}

// TargetError is a failed single-target analysis in JSON output.
type TargetError struct {
	Target string `json:"target"`
	Error  string `json:"error"`
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// scanDocument is the non-streaming output shape.
type scanDocument struct {
	Summary *Summary           `json:"summary"`
	Reports []*analyzer.Report `json:"reports"`
	Errors  []TargetError      `json:"errors,omitempty"`
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer:  w,
		pretty:  pretty,
		stream:  stream,
		reports: make([]*analyzer.Report, 0),
		errs:    make([]TargetError, 0),
	}
}

// WriteReport writes or buffers one report.
func (j *JSONWriter) WriteReport(report *analyzer.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if j.stream {
		return j.writeValue(StreamEvent{Type: "report", Data: report})
	}
	j.reports = append(j.reports, report)
	return nil
}

// WriteError writes or buffers a failed target.
func (j *JSONWriter) WriteError(target string, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	te := TargetError{Target: target, Error: err.Error()}
	if j.stream {
		return j.writeValue(StreamEvent{Type: "error", Data: te})
	}
	j.errs = append(j.errs, te)
	return nil
}

// WriteSummary writes the summary; in buffered mode this emits the whole
// scan document.
func (j *JSONWriter) WriteSummary(summary *Summary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if j.stream {
		return j.writeValue(StreamEvent{Type: "summary", Data: summary})
	}
	return j.writeValue(scanDocument{
		Summary: summary,
		Reports: j.reports,
		Errors:  j.errs,
	})
}

// writeValue marshals and writes a single value followed by a newline.
func (j *JSONWriter) writeValue(v interface{}) error {
	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err = j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
