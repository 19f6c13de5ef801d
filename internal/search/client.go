// Package search augments idea analysis with recent web search results
// from a fixed allow-list of model-provider and developer sites.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Default client settings.
const (
	DefaultBaseURL    = "https://api.tavily.com"
	DefaultTimeout    = 15 * time.Second
	DefaultMaxResults = 10
)

// IncludeDomains is the allow-list every search is restricted to.
var IncludeDomains = []string{
	"blog.openai.com", "openai.com",
	"anthropic.com", "blog.anthropic.com",
	"ai.google.dev", "blog.google", "deepmind.google",
	"ai.meta.com",
	"blogs.microsoft.com",
	"huggingface.co",
	"github.com",
}

// ExcludeDomains is the deny-list every search carries.
var ExcludeDomains = []string{"ads.com", "spam.com"}

// Result is one hit in a provider response.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Response is a provider response to a single query.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Searcher runs a single query. A nil response means the search was
// unavailable or failed; it is never an error.
type Searcher interface {
	Search(ctx context.Context, query string) *Response
}

// Options configures a Client.
type Options struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is a Tavily search client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

var _ Searcher = (*Client)(nil)

// NewClient creates a search client. An empty API key yields a client
// whose searches all return nil.
func NewClient(opts Options, logger arbor.ILogger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// Enabled reports whether the client has credentials.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type searchRequest struct {
	APIKey            string   `json:"api_key"`
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
}

// Search runs query against the provider. Every failure is logged and
// reported as nil.
func (c *Client) Search(ctx context.Context, query string) *Response {
	if !c.Enabled() {
		c.logger.Debug().Msg("Search API key not configured - search disabled")
		return nil
	}

	resp, err := c.search(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Search failed")
		return nil
	}
	c.logger.Debug().Str("query", query).Msgf("Search returned %d results", len(resp.Results))
	return resp
}

func (c *Client) search(ctx context.Context, query string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(searchRequest{
		APIKey:         c.apiKey,
		Query:          query,
		SearchDepth:    "basic",
		IncludeAnswer:  true,
		MaxResults:     DefaultMaxResults,
		IncludeDomains: IncludeDomains,
		ExcludeDomains: ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Query == "" {
		out.Query = query
	}
	return &out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
