package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/formhawk/formhawk/internal/errors"
	"github.com/formhawk/formhawk/internal/logger"
)

// Analyzer runs the full per-document pipeline: extract forms, locate token
// candidates, evaluate them, and aggregate verdicts into a Report. It holds
// no mutable state between calls and is safe for concurrent use across
// documents.
type Analyzer struct {
	cfg     Config
	locator *Locator
	log     *logger.Logger
}

// New creates an analyzer. The zero-value Config is usable; defaults are
// filled in. Configuration must already be validated by the caller.
func New(cfg Config, log *logger.Logger) *Analyzer {
	cfg.Normalize()
	if log == nil {
		log = logger.NewDefault()
	}
	return &Analyzer{
		cfg:     cfg,
		locator: NewLocator(cfg.TokenNamePatterns),
		log:     log.WithComponent("analyzer"),
	}
}

// Analyze parses raw HTML and analyzes every form in it. source identifies
// the input (URL or file path) and, when it is a URL, is also used to
// resolve form actions. A parse failure is returned as a typed error and
// fails only this one input, never a whole batch.
func (a *Analyzer) Analyze(html, source string) (*Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParseError(source, "parse_html", err)
	}
	return a.AnalyzeDocument(doc, source), nil
}

// AnalyzeDocument analyzes an already-parsed document.
func (a *Analyzer) AnalyzeDocument(doc *goquery.Document, source string) *Report {
	pageURL := ""
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		pageURL = source
	}

	extractor := NewExtractor(pageURL, a.cfg.MutatingPathVerbs)
	evaluator := NewEvaluator(a.cfg)

	forms := extractor.Extract(doc)
	a.log.Event(logger.DebugLevel).
		Str("source", source).
		Int("forms", len(forms)).
		Msg("Extracted forms")

	verdicts := make([]Verdict, 0, len(forms))
	for _, form := range forms {
		candidates := a.locator.Locate(doc, form)
		verdict := evaluator.Evaluate(form, candidates)
		a.log.VerdictEvent(source, form.Index, string(verdict.Status), string(verdict.Severity))
		verdicts = append(verdicts, verdict)
	}

	return aggregate(source, verdicts)
}

// aggregate packages verdicts into a Report. Kept separate so output layers
// depend only on the Report shape, never on the pipeline internals.
func aggregate(source string, verdicts []Verdict) *Report {
	report := &Report{
		Source:   source,
		Verdicts: verdicts,
		Stats:    ReportStats{Forms: len(verdicts)},
	}

	for _, v := range verdicts {
		switch v.Status {
		case StatusProtected:
			report.Stats.Protected++
		case StatusMissing:
			report.Stats.Missing++
		case StatusWeak:
			report.Stats.Weak++
		case StatusNotApplicable:
			report.Stats.NotApplicable++
		}
	}

	return report
}
