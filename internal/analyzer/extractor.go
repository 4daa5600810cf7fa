package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mutatingMethods are HTTP verbs that change server-side state.
var mutatingMethods = map[string]struct{}{
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

// Extractor walks a parsed document and produces Form records in document
// order. Extraction is reproducible: the same input always yields the same
// sequence.
type Extractor struct {
	baseURL       *url.URL
	mutatingVerbs map[string]struct{}
}

// NewExtractor creates an extractor. pageURL may be empty (local file input);
// actions are then left unresolved. mutatingVerbs are the path-segment tokens
// that mark a GET action as state-changing.
func NewExtractor(pageURL string, mutatingVerbs []string) *Extractor {
	e := &Extractor{
		mutatingVerbs: make(map[string]struct{}, len(mutatingVerbs)),
	}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil && u.Scheme != "" {
			e.baseURL = u
		}
	}
	for _, v := range mutatingVerbs {
		e.mutatingVerbs[strings.ToLower(v)] = struct{}{}
	}
	return e
}

// Extract returns all forms in the document, in document order. A nil or
// unusable document yields an empty slice rather than an error so that one
// bad document never aborts a batch.
func (e *Extractor) Extract(doc *goquery.Document) []Form {
	forms := make([]Form, 0)
	if doc == nil {
		return forms
	}

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		forms = append(forms, e.extractForm(i, s))
	})

	return forms
}

// extractForm builds one Form record from a <form> selection.
func (e *Extractor) extractForm(index int, s *goquery.Selection) Form {
	attrs := attrMap(s)

	method := strings.ToUpper(strings.TrimSpace(attrs["method"]))
	if method == "" {
		method = "GET"
	}

	action := attrs["action"]

	form := Form{
		Index:          index,
		Action:         action,
		ResolvedAction: e.resolveAction(action),
		Method:         method,
		Fields:         make([]Field, 0),
		Attrs:          attrs,
	}

	s.Find("input, select, textarea, button").Each(func(_ int, fs *goquery.Selection) {
		form.Fields = append(form.Fields, extractField(fs))
	})

	form.StateChanging = e.isStateChanging(method, action)

	return form
}

// extractField builds a Field from an input-like selection.
func extractField(s *goquery.Selection) Field {
	attrs := attrMap(s)

	f := Field{
		Name:  attrs["name"],
		Value: attrs["value"],
		Attrs: attrs,
	}

	switch {
	case s.Is("textarea"):
		f.Type = "textarea"
		f.Value = strings.TrimSpace(s.Text())
	case s.Is("select"):
		f.Type = "select"
		s.Find("option").First().Each(func(_ int, opt *goquery.Selection) {
			f.Value, _ = opt.Attr("value")
		})
	case s.Is("button"):
		f.Type = attrs["type"]
		if f.Type == "" {
			f.Type = "submit"
		}
	default:
		f.Type = strings.ToLower(attrs["type"])
		if f.Type == "" {
			f.Type = "text"
		}
	}

	return f
}

// attrMap converts a node's attributes to an explicit map with lowercase
// keys. The first occurrence of a duplicated attribute name wins.
func attrMap(s *goquery.Selection) map[string]string {
	m := make(map[string]string)
	if len(s.Nodes) == 0 {
		return m
	}
	for _, a := range s.Nodes[0].Attr {
		key := strings.ToLower(a.Key)
		if _, seen := m[key]; !seen {
			m[key] = a.Val
		}
	}
	return m
}

// resolveAction resolves a form action against the page URL when one is
// known. An empty action means "submit to the current page".
func (e *Extractor) resolveAction(action string) string {
	if e.baseURL == nil {
		return action
	}
	if action == "" {
		return e.baseURL.String()
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return e.baseURL.ResolveReference(ref).String()
}

// isStateChanging applies the state-change heuristic: mutating HTTP methods
// always qualify; GET forms qualify only when the action path contains a
// mutating verb as a whole path segment. The GET heuristic is approximate
// and is surfaced as such in verdict reasons.
func (e *Extractor) isStateChanging(method, action string) bool {
	if _, ok := mutatingMethods[method]; ok {
		return true
	}
	if action == "" {
		return false
	}

	path := action
	if u, err := url.Parse(action); err == nil && u.Path != "" {
		path = u.Path
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if _, ok := e.mutatingVerbs[strings.ToLower(seg)]; ok {
			return true
		}
	}
	return false
}
