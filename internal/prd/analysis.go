package prd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// metadataKey is the reserved analysis field carrying search provenance.
const metadataKey = "_searchMetadata"

// SearchResult is one web search hit. Position in a slice is the
// provider's relevance rank.
type SearchResult struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Domain         string    `json:"domain"`
	ContentSnippet string    `json:"content_preview"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// SearchMetadata summarizes the searches behind an analysis.
type SearchMetadata struct {
	SearchTimestamp time.Time      `json:"search_timestamp"`
	TotalSources    int            `json:"total_sources"`
	Sources         []SearchResult `json:"sources"`
	SearchedDomains []string       `json:"search_domains"`
}

// maxKeySources bounds the provenance block's cited sources.
const maxKeySources = 5

// Provenance projects the metadata into a document SourcesBlock.
func (m *SearchMetadata) Provenance() *SourcesBlock {
	if m == nil {
		return nil
	}
	block := &SourcesBlock{
		GeneratedAt:     m.SearchTimestamp.UTC().Format(time.RFC3339),
		TotalSources:    m.TotalSources,
		DomainsSearched: append([]string{}, m.SearchedDomains...),
		KeySources:      []KeySource{},
	}
	for i, s := range m.Sources {
		if i == maxKeySources {
			break
		}
		block.KeySources = append(block.KeySources, KeySource{Title: s.Title, URL: s.URL, Domain: s.Domain})
	}
	return block
}

// AnalysisRecord is the structured interpretation of a raw idea. Fields
// holds whatever the model produced; SearchMetadata is set only when the
// producing strategy was search-augmented.
type AnalysisRecord struct {
	Fields         map[string]any
	SearchMetadata *SearchMetadata
}

// NewAnalysisRecord wraps decoded model output. A _searchMetadata key in
// the output is dropped; provenance only comes from real searches.
func NewAnalysisRecord(fields map[string]any) *AnalysisRecord {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != metadataKey {
			clean[k] = v
		}
	}
	return &AnalysisRecord{Fields: clean}
}

// MarshalJSON flattens Fields and nests metadata under _searchMetadata.
func (a AnalysisRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		out[k] = v
	}
	if a.SearchMetadata != nil {
		out[metadataKey] = a.SearchMetadata
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Fields = make(map[string]any, len(raw))
	a.SearchMetadata = nil
	for k, v := range raw {
		if k == metadataKey {
			var md SearchMetadata
			if err := json.Unmarshal(v, &md); err != nil {
				return fmt.Errorf("parse %s: %w", metadataKey, err)
			}
			a.SearchMetadata = &md
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		a.Fields[k] = val
	}
	return nil
}

// JSON renders the record for prompt embedding. Metadata is omitted
// unless withMetadata is set.
func (a *AnalysisRecord) JSON(withMetadata bool) string {
	rec := *a
	if !withMetadata {
		rec.SearchMetadata = nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ProductName returns the analysis productName field, if a string.
func (a *AnalysisRecord) ProductName() string {
	s, _ := a.Fields["productName"].(string)
	return s
}

// KeyFeatures returns the keyFeatures field as strings. Object entries
// contribute their title or name.
func (a *AnalysisRecord) KeyFeatures() []string {
	list, ok := a.Fields["keyFeatures"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			for _, key := range []string{"title", "name", "feature"} {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

// Variant selects the document schema used during synthesis.
type Variant string

const (
	Enterprise Variant = "enterprise"
	Consumer   Variant = "consumer"
)

var (
	enterpriseKeywords = []string{"enterprise", "business", "employee", "company", "workflow", "automation", "internal", "b2b"}
	aiKeywords         = []string{"ai", "agent", "llm", "gpt", "claude", "artificial intelligence"}
)

// Classify reports Enterprise when the serialized analysis mentions both
// an enterprise term and an AI term, and Consumer otherwise. Matching is
// case-insensitive substring containment over the whole record, search
// metadata included.
func Classify(a *AnalysisRecord) Variant {
	if a == nil {
		return Consumer
	}
	data, err := json.Marshal(a)
	if err != nil {
		return Consumer
	}
	text := strings.ToLower(string(data))
	if containsAny(text, enterpriseKeywords) && containsAny(text, aiKeywords) {
		return Enterprise
	}
	return Consumer
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
