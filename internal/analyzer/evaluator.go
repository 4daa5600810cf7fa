package analyzer

import (
	"fmt"
	"math"
	"strings"
)

// Evaluator applies the token quality rule set to a form's candidates and
// produces exactly one Verdict. It is a pure function of its inputs plus the
// immutable configuration captured at construction, so concurrent analyses
// cannot interfere.
type Evaluator struct {
	minLength        int
	entropyThreshold float64
	placeholders     map[string]struct{}
	knownDefaults    map[string]struct{}
}

// NewEvaluator creates an evaluator from analysis configuration.
func NewEvaluator(cfg Config) *Evaluator {
	cfg.Normalize()

	ev := &Evaluator{
		minLength:        cfg.MinTokenLength,
		entropyThreshold: cfg.EntropyThreshold,
		placeholders:     make(map[string]struct{}, len(cfg.PlaceholderValues)+1),
		knownDefaults:    make(map[string]struct{}, len(cfg.KnownDefaultValues)),
	}
	for _, v := range cfg.PlaceholderValues {
		ev.placeholders[v] = struct{}{}
	}
	// Emptiness itself is a weakness signal.
	ev.placeholders[""] = struct{}{}
	for _, v := range cfg.KnownDefaultValues {
		ev.knownDefaults[v] = struct{}{}
	}
	return ev
}

// ruleOutcome is the tagged result of a single quality rule.
type ruleOutcome struct {
	triggered bool
	weak      bool
	rule      string
	reason    string
}

// tokenRule is one entry of the ordered rule list. Rules are evaluated in
// order and the first triggered rule decides the candidate.
type tokenRule struct {
	name  string
	apply func(ev *Evaluator, c TokenCandidate) ruleOutcome
}

// candidateRules is the ordered rule list for a single candidate.
// Each rule is a pure function; first match wins.
var candidateRules = []tokenRule{
	{
		name: "empty-value",
		apply: func(ev *Evaluator, c TokenCandidate) ruleOutcome {
			if c.Value != "" {
				return ruleOutcome{}
			}
			return ruleOutcome{
				triggered: true,
				weak:      true,
				reason:    fmt.Sprintf("token %q has an empty value", c.FieldName),
			}
		},
	},
	{
		name: "static-value",
		apply: func(ev *Evaluator, c TokenCandidate) ruleOutcome {
			if !c.LooksStatic {
				return ruleOutcome{}
			}
			return ruleOutcome{
				triggered: true,
				weak:      true,
				reason:    fmt.Sprintf("token %q carries a static or placeholder value %q", c.FieldName, c.Value),
			}
		},
	},
	{
		name: "short-value",
		apply: func(ev *Evaluator, c TokenCandidate) ruleOutcome {
			if len(c.Value) >= ev.minLength {
				return ruleOutcome{}
			}
			return ruleOutcome{
				triggered: true,
				weak:      true,
				reason:    fmt.Sprintf("token %q is %d characters, below the %d-character minimum", c.FieldName, len(c.Value), ev.minLength),
			}
		},
	},
	{
		name: "low-entropy",
		apply: func(ev *Evaluator, c TokenCandidate) ruleOutcome {
			if c.EntropyEstimate >= ev.entropyThreshold {
				return ruleOutcome{}
			}
			return ruleOutcome{
				triggered: true,
				weak:      true,
				reason:    fmt.Sprintf("token %q has low entropy (%.2f bits/char, threshold %.2f)", c.FieldName, c.EntropyEstimate, ev.entropyThreshold),
			}
		},
	},
	{
		name: "unverifiable-source",
		apply: func(ev *Evaluator, c TokenCandidate) ruleOutcome {
			if c.Source == SourceHiddenInput {
				return ruleOutcome{}
			}
			// A single page fetch cannot confirm that a meta or
			// header-attribute token varies per page load.
			return ruleOutcome{
				triggered: true,
				weak:      true,
				reason:    fmt.Sprintf("unverifiable same-page token %q (source %s)", c.FieldName, c.Source),
			}
		},
	},
}

// Evaluate combines the per-candidate rule outcomes into the form's verdict.
// The overall status is the best of reasonable interpretations: one sound
// token protects the form even when legacy or redundant fields fail.
func (ev *Evaluator) Evaluate(form Form, candidates []TokenCandidate) Verdict {
	verdict := Verdict{
		FormIndex: form.Index,
		Action:    form.Action,
		Method:    form.Method,
		Reasons:   make([]string, 0),
	}

	if !form.StateChanging {
		verdict.Status = StatusNotApplicable
		verdict.Severity = SeverityInfo
		verdict.Reasons = append(verdict.Reasons, "form does not submit a state-changing request; CSRF protection not required")
		return verdict
	}

	if len(candidates) == 0 {
		verdict.Status = StatusMissing
		verdict.Severity = SeverityHigh
		verdict.Reasons = append(verdict.Reasons,
			"state-changing form carries no anti-CSRF token candidate (hidden input, meta tag, or header attribute)")
		if form.Method == "GET" {
			verdict.Reasons = append(verdict.Reasons,
				"flagged as state-changing by the mutating-verb path heuristic; confirm manually")
		}
		return verdict
	}

	anyProtected := false
	onlyUnverifiable := true
	evaluated := make([]TokenCandidate, 0, len(candidates))

	for _, c := range candidates {
		c.EntropyEstimate = entropyEstimate(c.Value)
		c.LooksStatic = ev.looksStatic(c.Value)

		if c.NameMatch {
			verdict.Reasons = append(verdict.Reasons,
				fmt.Sprintf("field %q matches a known token naming convention", c.FieldName))
		}

		outcome := ev.evaluateCandidate(c)
		if outcome.weak {
			verdict.Reasons = append(verdict.Reasons, outcome.reason)
			if outcome.rule != "unverifiable-source" {
				onlyUnverifiable = false
			}
		} else {
			anyProtected = true
			onlyUnverifiable = false
			verdict.Reasons = append(verdict.Reasons,
				fmt.Sprintf("token %q is a non-static hidden-field value with adequate length and entropy", c.FieldName))
		}

		evaluated = append(evaluated, c)
	}

	verdict.Candidates = evaluated

	if anyProtected {
		verdict.Status = StatusProtected
		verdict.Severity = SeverityInfo
		return verdict
	}

	verdict.Status = StatusWeak
	if onlyUnverifiable {
		// Token present but its freshness cannot be confirmed from one
		// fetch; weaker signal than a demonstrably bad value.
		verdict.Severity = SeverityLow
	} else {
		verdict.Severity = SeverityMedium
	}
	return verdict
}

// evaluateCandidate runs the ordered rule list; the first triggered rule
// decides. A candidate with no triggered rule is protected.
func (ev *Evaluator) evaluateCandidate(c TokenCandidate) ruleOutcome {
	for _, rule := range candidateRules {
		if outcome := rule.apply(ev, c); outcome.triggered {
			outcome.rule = rule.name
			return outcome
		}
	}
	return ruleOutcome{}
}

// looksStatic reports whether the value matches a placeholder or a known
// default/example value supplied by configuration.
func (ev *Evaluator) looksStatic(value string) bool {
	if _, ok := ev.placeholders[value]; ok {
		return true
	}
	if _, ok := ev.placeholders[strings.ToLower(value)]; ok {
		return true
	}
	_, ok := ev.knownDefaults[value]
	return ok
}

// entropyEstimate computes a Shannon estimate in bits per character over the
// value. Short or low-diversity values score low by construction: the
// estimate is bounded by log2 of the value length.
func entropyEstimate(value string) float64 {
	if value == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range value {
		freq[r]++
		total++
	}

	var h float64
	for _, n := range freq {
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
