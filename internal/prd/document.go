// Package prd holds the product-requirements domain: the generated
// document, the intermediate analysis record, and the stored form.
package prd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Priority is a feature's MoSCoW label.
type Priority string

const (
	MustHave   Priority = "Must-have"
	ShouldHave Priority = "Should-have"
	CouldHave  Priority = "Could-have"
)

// NormalizePriority maps any casing of a known label onto its canonical
// spelling. Unknown labels are returned unchanged.
func NormalizePriority(p string) Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "must-have", "must have", "must":
		return MustHave
	case "should-have", "should have", "should":
		return ShouldHave
	case "could-have", "could have", "could":
		return CouldHave
	}
	return Priority(p)
}

// Canonical reports whether p is one of the three canonical labels.
func (p Priority) Canonical() bool {
	return p == MustHave || p == ShouldHave || p == CouldHave
}

// Feature is one entry of the document's feature list.
type Feature struct {
	Title       string   `json:"title"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// Document is the generated product-requirements document. Free-form
// sections keep the model's JSON verbatim.
type Document struct {
	Overview              string          `json:"overview"`
	Problem               json.RawMessage `json:"problem,omitempty"`
	Goals                 json.RawMessage `json:"goals,omitempty"`
	CompetitiveAnalysis   json.RawMessage `json:"competitiveAnalysis,omitempty"`
	TechnicalApproach     json.RawMessage `json:"technicalApproach,omitempty"`
	ImplementationDetails json.RawMessage `json:"implementationDetails,omitempty"`
	BusinessModel         json.RawMessage `json:"businessModel,omitempty"`
	Features              []Feature       `json:"features"`
	Metrics               json.RawMessage `json:"metrics,omitempty"`
	SearchSources         *SourcesBlock   `json:"searchSources,omitempty"`
}

// SourcesBlock is the provenance summary attached to a document.
type SourcesBlock struct {
	GeneratedAt     string      `json:"generatedAt"`
	TotalSources    int         `json:"totalSources"`
	DomainsSearched []string    `json:"domainsSearched"`
	KeySources      []KeySource `json:"keySources"`
}

// KeySource is one cited source in a SourcesBlock.
type KeySource struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// Validation errors.
var (
	ErrMissingOverview = errors.New("document is missing overview")
	ErrMissingFeatures = errors.New("document is missing features")
	ErrInvalidPriority = errors.New("feature priority is not Must-have, Should-have or Could-have")
)

// Validate checks the required sections and that every feature carries a
// canonical priority.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Overview) == "" {
		return ErrMissingOverview
	}
	if len(d.Features) == 0 {
		return ErrMissingFeatures
	}
	for _, f := range d.Features {
		if !f.Priority.Canonical() {
			return fmt.Errorf("feature %q: %w: %q", f.Title, ErrInvalidPriority, f.Priority)
		}
	}
	return nil
}

// DocumentFromMap narrows a decoded model object into a Document,
// normalizing feature priorities. Structured values where text is expected
// are flattened to text. The result is not validated.
func DocumentFromMap(m map[string]any) (*Document, error) {
	data, err := json.Marshal(flattenTextFields(m))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document shape: %w", err)
	}

	for i := range doc.Features {
		doc.Features[i].Priority = NormalizePriority(string(doc.Features[i].Priority))
	}
	return &doc, nil
}

// flattenTextFields returns a shallow copy of m with the overview and each
// feature's text fields coerced to strings.
func flattenTextFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	if v, ok := out["overview"]; ok {
		out["overview"] = flatten(v)
	}

	list, ok := out["features"].([]any)
	if !ok {
		return out
	}
	features := make([]any, len(list))
	for i, item := range list {
		f, ok := item.(map[string]any)
		if !ok {
			features[i] = item
			continue
		}
		copied := make(map[string]any, len(f))
		for k, v := range f {
			copied[k] = v
		}
		for _, key := range []string{"title", "priority", "description"} {
			if v, ok := copied[key]; ok {
				copied[key] = flatten(v)
			}
		}
		features[i] = copied
	}
	out["features"] = features
	return out
}

// flatten renders v as text. Lists become one line per item and objects
// one "key: value" line per key, in key order.
func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, k+": "+flatten(t[k]))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(t)
	}
}

// ParseDocument decodes stored document JSON.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}
