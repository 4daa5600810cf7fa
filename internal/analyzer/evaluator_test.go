package analyzer

import (
	"math"
	"strings"
	"testing"
)

// strongToken is 32 distinct characters: well above the default length
// minimum with an entropy of exactly 5 bits/char.
const strongToken = "abcdefghijklmnopqrstuvwxyz012345"

func postForm(candidatesOnly ...Field) Form {
	return Form{
		Index:         0,
		Action:        "/update",
		Method:        "POST",
		Fields:        candidatesOnly,
		StateChanging: true,
	}
}

// =============================================================================
// Evaluator Tests
// =============================================================================

func TestEvaluator_Evaluate_NotApplicable(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	form := Form{
		Index:         2,
		Action:        "/search",
		Method:        "GET",
		StateChanging: false,
	}

	verdict := ev.Evaluate(form, nil)

	if verdict.Status != StatusNotApplicable {
		t.Errorf("Status = %q, want %q", verdict.Status, StatusNotApplicable)
	}
	if verdict.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityInfo)
	}
	if verdict.FormIndex != 2 {
		t.Errorf("FormIndex = %d, want 2", verdict.FormIndex)
	}
	if len(verdict.Reasons) == 0 {
		t.Error("expected an explanatory reason")
	}
}

func TestEvaluator_Evaluate_Missing(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	verdict := ev.Evaluate(postForm(), nil)

	if verdict.Status != StatusMissing {
		t.Errorf("Status = %q, want %q", verdict.Status, StatusMissing)
	}
	if verdict.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityHigh)
	}
}

func TestEvaluator_Evaluate_MissingGETHeuristicCaveat(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	form := Form{
		Index:         0,
		Action:        "/profile/delete/42",
		Method:        "GET",
		StateChanging: true,
	}

	verdict := ev.Evaluate(form, nil)

	if verdict.Status != StatusMissing || verdict.Severity != SeverityHigh {
		t.Fatalf("verdict = %s/%s, want MISSING/HIGH", verdict.Status, verdict.Severity)
	}

	// GET forms are flagged by a heuristic; the verdict must say so.
	caveat := false
	for _, r := range verdict.Reasons {
		if strings.Contains(r, "heuristic") {
			caveat = true
		}
	}
	if !caveat {
		t.Errorf("Reasons = %v, want a heuristic caveat", verdict.Reasons)
	}
}

func TestEvaluator_Evaluate_Protected(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	candidates := []TokenCandidate{
		{FieldName: "csrf_token", Value: strongToken, Source: SourceHiddenInput, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)

	if verdict.Status != StatusProtected {
		t.Errorf("Status = %q, want %q", verdict.Status, StatusProtected)
	}
	if verdict.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityInfo)
	}
	if len(verdict.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(verdict.Candidates))
	}
	if verdict.Candidates[0].EntropyEstimate != 5.0 {
		t.Errorf("EntropyEstimate = %v, want 5.0", verdict.Candidates[0].EntropyEstimate)
	}
	if verdict.Candidates[0].LooksStatic {
		t.Error("LooksStatic = true, want false")
	}
}

func TestEvaluator_Evaluate_WeakRules(t *testing.T) {
	tests := []struct {
		name       string
		candidate  TokenCandidate
		wantReason string
	}{
		{
			name:       "empty value",
			candidate:  TokenCandidate{FieldName: "csrf", Value: "", Source: SourceHiddenInput},
			wantReason: "empty value",
		},
		{
			name:       "placeholder value",
			candidate:  TokenCandidate{FieldName: "csrf", Value: "1", Source: SourceHiddenInput},
			wantReason: "static or placeholder",
		},
		{
			name:       "placeholder case-insensitive",
			candidate:  TokenCandidate{FieldName: "csrf", Value: "ChangeMe", Source: SourceHiddenInput},
			wantReason: "static or placeholder",
		},
		{
			name:       "short value",
			candidate:  TokenCandidate{FieldName: "csrf", Value: "abcdef1234", Source: SourceHiddenInput},
			wantReason: "below the 16-character minimum",
		},
		{
			name:       "low entropy",
			candidate:  TokenCandidate{FieldName: "csrf", Value: strings.Repeat("a", 24), Source: SourceHiddenInput},
			wantReason: "low entropy",
		},
	}

	ev := NewEvaluator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ev.Evaluate(postForm(), []TokenCandidate{tt.candidate})

			if verdict.Status != StatusWeak {
				t.Errorf("Status = %q, want %q", verdict.Status, StatusWeak)
			}
			if verdict.Severity != SeverityMedium {
				t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityMedium)
			}

			found := false
			for _, r := range verdict.Reasons {
				if strings.Contains(r, tt.wantReason) {
					found = true
				}
			}
			if !found {
				t.Errorf("Reasons = %v, want one containing %q", verdict.Reasons, tt.wantReason)
			}
		})
	}
}

func TestEvaluator_Evaluate_UnverifiableOnlyIsLow(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	// A sound-looking token that only exists as a meta tag: present, but one
	// page fetch cannot confirm it rotates.
	candidates := []TokenCandidate{
		{FieldName: "csrf-token", Value: strongToken, Source: SourceMetaTag, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)

	if verdict.Status != StatusWeak {
		t.Errorf("Status = %q, want %q", verdict.Status, StatusWeak)
	}
	if verdict.Severity != SeverityLow {
		t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityLow)
	}
}

func TestEvaluator_Evaluate_UnverifiablePlusBadValueIsMedium(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	candidates := []TokenCandidate{
		{FieldName: "csrf-token", Value: strongToken, Source: SourceMetaTag, NameMatch: true},
		{FieldName: "token", Value: "1", Source: SourceHiddenInput, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)

	if verdict.Status != StatusWeak || verdict.Severity != SeverityMedium {
		t.Errorf("verdict = %s/%s, want WEAK/MEDIUM", verdict.Status, verdict.Severity)
	}
}

func TestEvaluator_Evaluate_BestCandidateWins(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())

	// One failing legacy field plus one sound token: the form is protected,
	// but the weakness signal stays visible in the reasons.
	candidates := []TokenCandidate{
		{FieldName: "legacy_token", Value: "", Source: SourceHiddenInput, NameMatch: true},
		{FieldName: "csrf_token", Value: strongToken, Source: SourceHiddenInput, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)

	if verdict.Status != StatusProtected {
		t.Errorf("Status = %q, want %q", verdict.Status, StatusProtected)
	}
	if verdict.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", verdict.Severity, SeverityInfo)
	}

	emptySignal := false
	for _, r := range verdict.Reasons {
		if strings.Contains(r, "empty value") {
			emptySignal = true
		}
	}
	if !emptySignal {
		t.Errorf("Reasons = %v, want the empty-value signal preserved", verdict.Reasons)
	}
}

func TestEvaluator_KnownDefaultValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KnownDefaultValues = []string{strongToken}
	ev := NewEvaluator(cfg)

	candidates := []TokenCandidate{
		{FieldName: "csrf_token", Value: strongToken, Source: SourceHiddenInput, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)

	if verdict.Status != StatusWeak || verdict.Severity != SeverityMedium {
		t.Errorf("verdict = %s/%s, want WEAK/MEDIUM for a known default value", verdict.Status, verdict.Severity)
	}
	if !verdict.Candidates[0].LooksStatic {
		t.Error("LooksStatic = false, want true for a known default value")
	}
}

func TestEvaluator_CustomThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTokenLength = 8
	cfg.EntropyThreshold = 2.0
	ev := NewEvaluator(cfg)

	candidates := []TokenCandidate{
		{FieldName: "csrf", Value: "abcd1234", Source: SourceHiddenInput, NameMatch: true},
	}

	verdict := ev.Evaluate(postForm(), candidates)
	if verdict.Status != StatusProtected {
		t.Errorf("Status = %q, want %q with relaxed thresholds", verdict.Status, StatusProtected)
	}
}

// =============================================================================
// Entropy Tests
// =============================================================================

func TestEntropyEstimate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"empty", "", 0},
		{"single repeated char", "aaaaaaaa", 0},
		{"two chars even split", "abababab", 1.0},
		{"four distinct chars", "abcd", 2.0},
		{"32 distinct chars", strongToken, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entropyEstimate(tt.value)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("entropyEstimate(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
