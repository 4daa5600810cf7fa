package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Locator finds candidate anti-CSRF tokens for a form. Candidates are never
// deduplicated across sources: a form may legitimately carry several tokens
// (double-submit schemes), and each is evaluated independently.
type Locator struct {
	namePatterns []string
}

// NewLocator creates a locator matching field names against the given
// lowercase substrings.
func NewLocator(namePatterns []string) *Locator {
	patterns := make([]string, 0, len(namePatterns))
	for _, p := range namePatterns {
		patterns = append(patterns, strings.ToLower(p))
	}
	return &Locator{namePatterns: patterns}
}

// Locate returns the form's token candidates in priority order:
// hidden inputs first, then document meta tags (only when no hidden
// candidate exists), then header-carrying data attributes on the form
// element itself. doc may be nil when no surrounding document is available;
// meta-tag candidates are then skipped.
func (l *Locator) Locate(doc *goquery.Document, form Form) []TokenCandidate {
	candidates := make([]TokenCandidate, 0)

	// Every hidden input is a candidate. Name match against known token
	// naming conventions is recorded as a signal but does not gate
	// inclusion: unconventionally named tokens must still be surfaced.
	for _, f := range form.Fields {
		if f.Type != "hidden" {
			continue
		}
		candidates = append(candidates, TokenCandidate{
			FieldName: f.Name,
			Value:     f.Value,
			Source:    SourceHiddenInput,
			NameMatch: l.matchesPattern(f.Name),
		})
	}

	// Meta-tag tokens are only associated with the form when no hidden
	// candidate exists. They back header-injection schemes driven by
	// JavaScript and carry lower confidence.
	if len(candidates) == 0 && doc != nil {
		candidates = append(candidates, l.locateMetaTokens(doc)...)
	}

	// Header-carrying data attributes on the form element.
	candidates = append(candidates, l.locateHeaderAttrs(form)...)

	return candidates
}

// locateMetaTokens finds meta tags elsewhere in the document whose name
// indicates a CSRF token value.
func (l *Locator) locateMetaTokens(doc *goquery.Document) []TokenCandidate {
	candidates := make([]TokenCandidate, 0)

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			name, _ = s.Attr("property")
		}
		if name == "" || !l.matchesPattern(name) {
			return
		}
		content, _ := s.Attr("content")
		candidates = append(candidates, TokenCandidate{
			FieldName: name,
			Value:     content,
			Source:    SourceMetaTag,
			NameMatch: true,
		})
	})

	return candidates
}

// locateHeaderAttrs finds custom data attributes on the form element that
// carry a token intended for a request header.
func (l *Locator) locateHeaderAttrs(form Form) []TokenCandidate {
	candidates := make([]TokenCandidate, 0)

	// Map iteration order is randomized; walk a sorted view so output is
	// reproducible across runs.
	for _, key := range sortedKeys(form.Attrs) {
		if !strings.HasPrefix(key, "data-") {
			continue
		}
		if !l.matchesPattern(strings.TrimPrefix(key, "data-")) {
			continue
		}
		candidates = append(candidates, TokenCandidate{
			FieldName: key,
			Value:     form.Attrs[key],
			Source:    SourceHeaderAttr,
			NameMatch: true,
		})
	}

	return candidates
}

// matchesPattern reports whether a field or attribute name matches any of
// the configured token naming conventions.
func (l *Locator) matchesPattern(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range l.namePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort; attribute maps are tiny.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
