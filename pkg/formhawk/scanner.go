package formhawk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/formhawk/formhawk/internal/analyzer"
	"github.com/formhawk/formhawk/internal/errors"
	"github.com/formhawk/formhawk/internal/fetch"
	"github.com/formhawk/formhawk/internal/logger"
	"github.com/formhawk/formhawk/internal/output"
	"github.com/formhawk/formhawk/internal/ratelimit"
	"github.com/formhawk/formhawk/internal/state"
)

// Scanner drives anti-CSRF form analysis across a batch of targets. Targets
// are URLs or local file paths; each page's analysis is independent and
// stateless, so targets are fanned out to a worker pool at the fetch
// boundary while the core pipeline stays synchronous per document.
type Scanner struct {
	config       *Config
	logger       *logger.Logger
	client       *fetch.Client
	analyzer     *analyzer.Analyzer
	limiter      *ratelimit.Limiter
	dedup        *state.Deduplicator
	store        *state.ReportStore
	writer       output.Writer
	outputWriter io.Writer
	cookies      []*http.Cookie

	mu      sync.Mutex
	reports []*analyzer.Report
	errs    []TargetError
}

// TargetError is a failed single-target analysis.
type TargetError struct {
	Target string
	Err    error
}

// Result is the aggregate outcome of one Scan call.
type Result struct {
	Reports []*analyzer.Report
	Errors  []TargetError
	Summary output.Summary
}

// HasHighFindings reports whether any target produced a HIGH-severity
// verdict.
func (r *Result) HasHighFindings() bool {
	return r.Summary.HighFindings > 0
}

// ExitCode returns the recommended process exit code for the result.
func (r *Result) ExitCode() int {
	return r.Summary.ExitCode()
}

// New creates a scanner with the given options. Configuration is validated
// here, before any document is analyzed.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	s.config.Analysis.Normalize()
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	if s.logger == nil {
		logLevel := logger.WarnLevel
		if s.config.Debug {
			logLevel = logger.DebugLevel
		} else if s.config.Verbose {
			logLevel = logger.InfoLevel
		}
		s.logger = logger.New(logger.Config{
			Level:     logLevel,
			Pretty:    true,
			Component: "scanner",
		})
	}

	s.client = fetch.New(fetch.Config{
		Timeout:       s.config.Timeout,
		UserAgent:     s.config.UserAgent,
		Headers:       s.config.Headers,
		SkipTLSVerify: s.config.InsecureTLS,
		Retry:         errors.DefaultRetryConfig(),
	})
	if len(s.cookies) > 0 {
		s.client.SetCookies(s.cookies)
	}

	s.analyzer = analyzer.New(s.config.Analysis, s.logger)
	s.limiter = ratelimit.NewLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
	if s.config.RateLimit.DomainDelay > 0 {
		s.limiter.SetDomainDelay(s.config.RateLimit.DomainDelay)
	}
	s.dedup = state.NewDeduplicator(1000)

	return s, nil
}

// Scan analyzes every target and returns the aggregate result. Individual
// target failures are collected, not fatal; the returned error covers only
// setup problems (output file, state store) and context cancellation.
func (s *Scanner) Scan(ctx context.Context, targets []string) (*Result, error) {
	start := time.Now()

	writer, cleanup, err := s.openWriter()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	s.writer = writer

	if s.config.State.FilePath != "" {
		store, err := state.NewReportStore(s.config.State.FilePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		s.store = store
	}

	pending := s.collectPending(targets)

	workers := s.config.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	if workers < 1 {
		workers = 1
	}

	targetChan := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log := s.logger.WithWorker(workerID)
			for target := range targetChan {
				s.scanTarget(ctx, log, target)
			}
		}(i)
	}

	for _, target := range pending {
		select {
		case targetChan <- target:
		case <-ctx.Done():
			close(targetChan)
			wg.Wait()
			return s.finish(targets, start), ctx.Err()
		}
	}
	close(targetChan)
	wg.Wait()

	result := s.finish(targets, start)
	return result, nil
}

// collectPending deduplicates targets and, when a report store is active,
// replays stored reports instead of re-scanning their targets.
func (s *Scanner) collectPending(targets []string) []string {
	pending := make([]string, 0, len(targets))

	for _, target := range targets {
		if s.dedup.HasSeen(target) {
			s.logger.Debugf("skipping duplicate target %s", target)
			continue
		}
		s.dedup.Add(target)

		if s.store != nil && s.store.Has(target) {
			report, err := s.store.Get(target)
			if err == nil && report != nil {
				s.logger.Infof("resuming: using stored report for %s", target)
				s.recordReport(report)
				continue
			}
		}
		pending = append(pending, target)
	}

	return pending
}

// scanTarget fetches (or reads) one target and runs the analysis pipeline.
func (s *Scanner) scanTarget(ctx context.Context, log *logger.Logger, target string) {
	html, source, err := s.loadTarget(ctx, target)
	if err != nil {
		log.ErrorEvent(err, target, "load")
		s.recordError(target, err)
		return
	}

	report, err := s.analyzer.Analyze(html, source)
	if err != nil {
		log.ErrorEvent(err, target, "analyze")
		s.recordError(target, err)
		return
	}

	log.Event(logger.InfoLevel).
		Str("target", target).
		Int("forms", report.Stats.Forms).
		Int("missing", report.Stats.Missing).
		Int("weak", report.Stats.Weak).
		Msg("Target analyzed")

	if s.store != nil {
		if err := s.store.Put(target, report); err != nil {
			log.Warnf("failed to persist report for %s: %v", target, err)
		}
	}
	s.recordReport(report)
}

// loadTarget returns the raw HTML for a target plus the source identifier to
// record in the report. Local files are read directly; URLs go through the
// rate limiter and the fetch client.
func (s *Scanner) loadTarget(ctx context.Context, target string) (html, source string, err error) {
	if u, perr := url.Parse(target); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if err := s.limiter.WaitDomain(ctx, u.Host); err != nil {
			return "", "", errors.Categorize(err, target)
		}
		res, err := s.client.Get(ctx, target)
		if err != nil {
			return "", "", err
		}
		return res.HTML, target, nil
	}

	data, rerr := os.ReadFile(target)
	if rerr != nil {
		return "", "", errors.NewScanError(errors.NotFound, target, "read_file", "cannot read input file", rerr)
	}
	return string(data), target, nil
}

func (s *Scanner) recordReport(report *analyzer.Report) {
	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.WriteReport(report); err != nil {
			s.logger.Warnf("failed to write report: %v", err)
		}
	}
}

func (s *Scanner) recordError(target string, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, TargetError{Target: target, Err: err})
	s.mu.Unlock()

	if s.writer != nil {
		if werr := s.writer.WriteError(target, err); werr != nil {
			s.logger.Warnf("failed to write error: %v", werr)
		}
	}
}

// finish assembles the result, writes the summary, and flushes output.
// Reports are ordered by source for reproducible output regardless of
// worker completion order.
func (s *Scanner) finish(targets []string, start time.Time) *Result {
	s.mu.Lock()
	reports := make([]*analyzer.Report, len(s.reports))
	copy(reports, s.reports)
	errs := make([]TargetError, len(s.errs))
	copy(errs, s.errs)
	s.mu.Unlock()

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Source < reports[j].Source
	})
	sort.Slice(errs, func(i, j int) bool {
		return errs[i].Target < errs[j].Target
	})

	summary := output.Summary{
		Targets:  s.dedup.Count(),
		Failed:   len(errs),
		Duration: time.Since(start),
	}
	for _, r := range reports {
		summary.Add(r)
	}

	if s.writer != nil {
		if err := s.writer.WriteSummary(&summary); err != nil {
			s.logger.Warnf("failed to write summary: %v", err)
		}
		s.writer.Flush()
	}

	return &Result{
		Reports: reports,
		Errors:  errs,
		Summary: summary,
	}
}

// openWriter builds the configured output writer, directing it at the
// output file when one is set.
func (s *Scanner) openWriter() (output.Writer, func(), error) {
	dest := s.outputWriter
	cleanup := func() {}

	if dest == nil {
		if s.config.Output.FilePath != "" {
			f, err := os.Create(s.config.Output.FilePath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create output file: %w", err)
			}
			dest = f
			cleanup = func() { f.Close() }
		} else {
			dest = os.Stdout
		}
	}

	return output.NewWriter(dest, s.config.Output), cleanup, nil
}
