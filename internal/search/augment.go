package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/prdforge/internal/prd"
	"golang.org/x/sync/errgroup"
)

// Fan-out and truncation limits.
const (
	MaxDispatched      = 3
	maxMetadataSources = 10
	insightContentLen  = 300
	snippetLen         = 150
)

// Augmenter gathers search context for an idea.
type Augmenter struct {
	searcher Searcher
	now      func() time.Time
}

// NewAugmenter creates an augmenter. now may be nil for time.Now.
func NewAugmenter(searcher Searcher, now func() time.Time) *Augmenter {
	if now == nil {
		now = time.Now
	}
	return &Augmenter{searcher: searcher, now: now}
}

// Context is the outcome of one augmentation: prompt text plus metadata.
// Metadata is nil when no search produced a response.
type Context struct {
	Window   Window
	Queries  []string
	Insights string
	Metadata *prd.SearchMetadata
}

// Augment generates queries for input, runs the first MaxDispatched of
// them, and folds the responses into prompt text and metadata.
func (a *Augmenter) Augment(ctx context.Context, input string, hints *QueryHints) *Context {
	now := a.now()
	w := NewWindow(now)
	queries := GenerateQueries(input, hints, w)
	responses := a.Gather(ctx, queries)

	return &Context{
		Window:   w,
		Queries:  queries,
		Insights: Insights(responses, w, now),
		Metadata: ExtractMetadata(responses, now),
	}
}

// Gather dispatches at most the first MaxDispatched queries concurrently
// and waits for all of them. Responses keep query order; failed searches
// are dropped.
func (a *Augmenter) Gather(ctx context.Context, queries []string) []*Response {
	if len(queries) > MaxDispatched {
		queries = queries[:MaxDispatched]
	}

	slots := make([]*Response, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			slots[i] = a.searcher.Search(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Response, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Insights renders responses as a prompt block. Empty when there are no
// responses.
func Insights(responses []*Response, w Window, now time.Time) string {
	blocks := make([]string, 0, len(responses))
	for _, r := range responses {
		if r == nil || r.Results == nil {
			continue
		}
		blocks = append(blocks, insightBlock(r, w, now))
	}
	return strings.Join(blocks, "\n")
}

func insightBlock(r *Response, w Window, now time.Time) string {
	var b strings.Builder
	b.WriteString("\n\n=== Live search results ===\n")
	fmt.Fprintf(&b, "Searched at: %s\n", now.Format("January 2, 2006"))
	fmt.Fprintf(&b, "Search window: last 3 months (%s)\n", w.Period())
	fmt.Fprintf(&b, "Sources found: %d\n\n", len(r.Results))

	if r.Answer != "" {
		fmt.Fprintf(&b, "**Summary**: %s\n\n", r.Answer)
	}

	b.WriteString("**Recent sources**:\n")
	for i, res := range r.Results {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, res.Title)
		fmt.Fprintf(&b, "   - Source: %s\n", res.URL)
		fmt.Fprintf(&b, "   - Content: %s...\n", prefix(res.Content, insightContentLen))
		fmt.Fprintf(&b, "   - Domain: %s\n\n", hostname(res.URL))
	}

	b.WriteString("**Important**: use the official announcements above for model names and versions:\n")
	b.WriteString("- Use the newest GPT models confirmed on OpenAI's sites\n")
	b.WriteString("- Use the newest Claude models confirmed on Anthropic's sites\n")
	b.WriteString("- Use the newest Gemini models confirmed on Google's AI sites\n")
	b.WriteString("- Reflect current Llama releases from Meta AI\n")
	b.WriteString("- Only cite officially announced models; exclude speculation\n")
	b.WriteString("- Do not recommend superseded model generations\n")
	return b.String()
}

// ExtractMetadata flattens all results into SearchMetadata. TotalSources
// counts every result, Sources keeps the first ten, and SearchedDomains
// lists every distinct domain in first-seen order. Returns nil for no
// responses. Duplicate URLs across queries are kept.
func ExtractMetadata(responses []*Response, now time.Time) *prd.SearchMetadata {
	if len(responses) == 0 {
		return nil
	}

	var sources []prd.SearchResult
	for _, r := range responses {
		if r == nil {
			continue
		}
		for _, res := range r.Results {
			sources = append(sources, prd.SearchResult{
				Title:          res.Title,
				URL:            res.URL,
				Domain:         hostname(res.URL),
				ContentSnippet: prefix(res.Content, snippetLen) + "...",
				FetchedAt:      now,
			})
		}
	}

	seen := make(map[string]bool)
	domains := []string{}
	for _, s := range sources {
		if !seen[s.Domain] {
			seen[s.Domain] = true
			domains = append(domains, s.Domain)
		}
	}

	md := &prd.SearchMetadata{
		SearchTimestamp: now,
		TotalSources:    len(sources),
		Sources:         sources,
		SearchedDomains: domains,
	}
	if len(md.Sources) > maxMetadataSources {
		md.Sources = md.Sources[:maxMetadataSources]
	}
	if md.Sources == nil {
		md.Sources = []prd.SearchResult{}
	}
	return md
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
