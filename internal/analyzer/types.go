// Package analyzer implements anti-CSRF analysis of HTML forms.
package analyzer

// Status classifies a form's CSRF posture.
type Status string

// Verdict statuses.
const (
	StatusProtected     Status = "PROTECTED"
	StatusMissing       Status = "MISSING"
	StatusWeak          Status = "WEAK"
	StatusNotApplicable Status = "NOT_APPLICABLE"
)

// Severity indicates how serious a finding is.
type Severity string

// Finding severities, ordered from least to most serious.
const (
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank returns a comparable weight for the severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// TokenSource identifies where a token candidate was found.
type TokenSource string

// Token candidate sources.
const (
	SourceHiddenInput TokenSource = "hidden-input"
	SourceMetaTag     TokenSource = "meta-tag"
	SourceHeaderAttr  TokenSource = "header-attribute"
)

// Field is a single input-like element inside a form. Immutable once built;
// owned exclusively by its parent Form.
type Field struct {
	Name  string            `json:"name"`
	Type  string            `json:"type"`
	Value string            `json:"value"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Form is one <form> element extracted from a document. Attribute names are
// case-normalized to lowercase at construction; the first occurrence of a
// duplicated attribute wins. Immutable once built.
type Form struct {
	// Index is the zero-based position of the form in document order.
	Index int `json:"index"`

	// Action is the raw action attribute; empty means "submit to the
	// current page".
	Action string `json:"action"`

	// ResolvedAction is the action resolved against the page URL when one
	// was supplied, otherwise equal to Action.
	ResolvedAction string `json:"resolved_action,omitempty"`

	// Method is the HTTP verb, uppercased, defaulting to GET.
	Method string `json:"method"`

	Fields []Field           `json:"fields"`
	Attrs  map[string]string `json:"attrs,omitempty"`

	// StateChanging reports whether submitting the form is expected to
	// mutate server-side state. For GET forms this is a heuristic based on
	// mutating verbs in the action path, not ground truth.
	StateChanging bool `json:"state_changing"`
}

// TokenCandidate is a potential anti-CSRF token located in or around a form.
type TokenCandidate struct {
	FieldName string      `json:"field_name"`
	Value     string      `json:"value"`
	Source    TokenSource `json:"source"`

	// NameMatch reports whether the field name matches a known CSRF token
	// naming convention. It is recorded as a signal but never gates
	// inclusion of the candidate.
	NameMatch bool `json:"name_match"`

	// EntropyEstimate is a Shannon estimate in bits per character over the
	// candidate value. Zero until evaluated.
	EntropyEstimate float64 `json:"entropy_estimate"`

	// LooksStatic is true when the value matches a placeholder or a known
	// default supplied by configuration. False until evaluated.
	LooksStatic bool `json:"looks_static"`
}

// Verdict is the evaluation outcome for a single form.
type Verdict struct {
	// FormIndex points back at the evaluated form by document position.
	// Lookup only; the verdict does not own the form.
	FormIndex int    `json:"form_index"`
	Action    string `json:"action"`
	Method    string `json:"method"`

	Status   Status   `json:"status"`
	Severity Severity `json:"severity"`

	// Reasons lists every triggered rule string from every candidate, in
	// candidate order, so all signals stay visible even when the overall
	// verdict is favorable.
	Reasons []string `json:"reasons"`

	// Candidates are the evaluated token candidates with entropy and
	// static-value annotations filled in.
	Candidates []TokenCandidate `json:"candidates,omitempty"`
}

// Report is the complete analysis of one document. Immutable once built.
// It deliberately carries no timestamps so identical input yields a
// byte-identical report.
type Report struct {
	// Source identifies the analyzed input (URL or file path).
	Source string `json:"source_identifier"`

	// Verdicts holds one entry per form, in document order.
	Verdicts []Verdict `json:"verdicts"`

	Stats ReportStats `json:"stats"`
}

// ReportStats summarizes a report.
type ReportStats struct {
	Forms         int `json:"forms"`
	Protected     int `json:"protected"`
	Missing       int `json:"missing"`
	Weak          int `json:"weak"`
	NotApplicable int `json:"not_applicable"`
}

// HighestSeverity returns the most serious severity across all verdicts,
// or SeverityInfo for an empty report.
func (r *Report) HighestSeverity() Severity {
	highest := SeverityInfo
	for _, v := range r.Verdicts {
		if v.Severity.Rank() > highest.Rank() {
			highest = v.Severity
		}
	}
	return highest
}

// HasHighFindings reports whether any verdict carries HIGH severity.
func (r *Report) HasHighFindings() bool {
	return r.HighestSeverity() == SeverityHigh
}
