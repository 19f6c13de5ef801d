package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/search"
	"github.com/ternarybob/prdforge/pkg/jsonrepair"
	"github.com/ternarybob/prdforge/pkg/llm"
)

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type reply struct {
	content string
	err     error
}

// scriptedProvider answers by model name. The last reply for a model
// repeats once the script runs out.
type scriptedProvider struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []*llm.CompletionRequest
}

func (p *scriptedProvider) Name() string {
	return "fake"
}

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	script := p.replies[req.Model]
	if len(script) == 0 {
		return nil, errors.New("no reply scripted for " + req.Model)
	}
	r := script[0]
	if len(script) > 1 {
		p.replies[req.Model] = script[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{Model: req.Model, Content: r.content}, nil
}

func (p *scriptedProvider) callsFor(model string) []*llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*llm.CompletionRequest
	for _, c := range p.calls {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}

type staticSearcher struct {
	mu    sync.Mutex
	calls int
}

func (s *staticSearcher) Search(ctx context.Context, query string) *search.Response {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &search.Response{
		Query:   query,
		Answer:  "New models shipped",
		Results: []search.Result{{Title: "Release notes", URL: "https://openai.com/index/release", Content: "details"}},
	}
}

const (
	analysisJSON = `{"productName":"Forge","description":"Internal AI agent that automates employee onboarding workflow","keyFeatures":["intake","drafting"]}`
	documentJSON = "```json\n" + `{
  "overview": "Forge drafts onboarding plans.",
  "problem": "Onboarding is manual.",
  "goals": {"primary": "Halve onboarding time"},
  "features": [
    {"title": "Intake", "priority": "must-have", "description": "Collect details"},
    {"title": "Drafting", "priority": "Should-have", "description": "Write plans",},
  ],
}` + "\n```"
)

func prompt(req *llm.CompletionRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

func newTestOrchestrator(t *testing.T, provider *scriptedProvider, searcher search.Searcher) *Orchestrator {
	t.Helper()

	prompts, err := DefaultPrompts()
	require.NoError(t, err)

	var augmenter *search.Augmenter
	if searcher != nil {
		augmenter = search.NewAugmenter(searcher, func() time.Time { return fixedNow })
	}

	return New(Options{
		Registry:   llm.NewRegistry(provider),
		Augmenter:  augmenter,
		Prompts:    prompts,
		Guidelines: prd.NewGuidelines("PMs", "plain", []string{"Be specific"}, []string{"overview", "features"}),
		Analysis: []Strategy{
			{Provider: "fake", Model: "primary", Search: true},
			{Provider: "fake", Model: "fallback", JSONMode: true},
		},
		Synthesis: []Strategy{
			{Provider: "fake", Model: "writer"},
			{Provider: "fake", Model: "writer-fallback", JSONMode: true},
		},
		Questions: []Strategy{
			{Provider: "fake", Model: "asker", JSONMode: true},
		},
		Now:    func() time.Time { return fixedNow },
		Logger: arbor.NewLogger(),
	})
}

func TestAnalyzer_PrimaryWithSearch(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{"primary": {{content: analysisJSON}}}}
	searcher := &staticSearcher{}
	o := newTestOrchestrator(t, provider, searcher)

	rec, err := o.analyzer.Analyze(context.Background(), "  onboarding helper  ")
	require.NoError(t, err)

	assert.Equal(t, "Forge", rec.ProductName())
	require.NotNil(t, rec.SearchMetadata)
	assert.Equal(t, search.MaxDispatched, rec.SearchMetadata.TotalSources)
	assert.Equal(t, search.MaxDispatched, searcher.calls)

	calls := provider.callsFor("primary")
	require.Len(t, calls, 1)
	assert.Contains(t, prompt(calls[0]), "=== Live search results ===")
	assert.Contains(t, prompt(calls[0]), "October 17, 2026")
	assert.Contains(t, prompt(calls[0]), "2026-07-17 to 2026-10-17")
	assert.Contains(t, prompt(calls[0]), "Recent market research covering")
	assert.Contains(t, prompt(calls[0]), "onboarding helper")
	assert.Empty(t, provider.callsFor("fallback"))
}

func TestAnalyzer_NoSearchOmitsResearchNote(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{"primary": {{content: analysisJSON}}}}
	o := newTestOrchestrator(t, provider, nil)

	rec, err := o.analyzer.Analyze(context.Background(), "onboarding helper")
	require.NoError(t, err)
	assert.Nil(t, rec.SearchMetadata)

	calls := provider.callsFor("primary")
	require.Len(t, calls, 1)
	assert.Contains(t, prompt(calls[0]), "Today is October 17, 2026.")
	assert.NotContains(t, prompt(calls[0]), "market research")
}

func TestAnalyzer_FallbackHasNoSearchContext(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary":  {{err: &llm.ProviderError{Provider: "fake", Code: "rate_limit", Message: "slow down"}}},
		"fallback": {{content: analysisJSON}},
	}}
	o := newTestOrchestrator(t, provider, &staticSearcher{})

	rec, err := o.analyzer.Analyze(context.Background(), "onboarding helper")
	require.NoError(t, err)

	assert.Nil(t, rec.SearchMetadata)
	calls := provider.callsFor("fallback")
	require.Len(t, calls, 1)
	assert.NotContains(t, prompt(calls[0]), "Live search results")
	assert.True(t, calls[0].JSONMode)
}

func TestAnalyzer_AllStrategiesFail(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary":  {{content: "no json here"}},
		"fallback": {{content: "{}"}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	_, err := o.analyzer.Analyze(context.Background(), "idea")
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 2, ae.Attempts)
	assert.ErrorIs(t, err, errEmptyAnalysis)
}

func TestAnalyzer_EmptyInput(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedProvider{}, nil)
	_, err := o.analyzer.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAnalyzer_MissingProviderIsSkipped(t *testing.T) {
	prompts, err := DefaultPrompts()
	require.NoError(t, err)

	provider := &scriptedProvider{replies: map[string][]reply{"m": {{content: analysisJSON}}}}
	a := NewAnalyzer(llm.NewRegistry(provider), nil, prompts, prd.Guidelines{}, []Strategy{
		{Provider: "absent", Model: "x"},
		{Provider: "fake", Model: "m"},
	}, func() time.Time { return fixedNow }, arbor.NewLogger())

	rec, err := a.Analyze(context.Background(), "idea")
	require.NoError(t, err)
	assert.Equal(t, "Forge", rec.ProductName())
}

func TestSynthesizer_ValidationFailureFallsThrough(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"writer":          {{content: `{"overview":"no features"}`}},
		"writer-fallback": {{content: documentJSON}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	doc, err := o.synthesizer.Synthesize(context.Background(), prd.NewAnalysisRecord(map[string]any{"description": "recipes"}))
	require.NoError(t, err)
	assert.Len(t, doc.Features, 2)
	assert.Nil(t, doc.SearchSources)
}

func TestSynthesizer_NonCanonicalPriorityFallsThrough(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"writer":          {{content: `{"overview":"Forge","features":[{"title":"Intake","priority":"High","description":"d"}]}`}},
		"writer-fallback": {{content: documentJSON}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	doc, err := o.synthesizer.Synthesize(context.Background(), prd.NewAnalysisRecord(map[string]any{"description": "recipes"}))
	require.NoError(t, err)
	require.Len(t, provider.callsFor("writer-fallback"), 1)
	assert.Equal(t, "Forge drafts onboarding plans.", doc.Overview)
	for _, f := range doc.Features {
		assert.True(t, f.Priority.Canonical(), f.Title)
	}
}

func TestSynthesizer_AllStrategiesFail(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"writer":          {{err: errors.New("boom")}},
		"writer-fallback": {{content: `{"overview":"","features":[{"title":"x"}]}`}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	_, err := o.synthesizer.Synthesize(context.Background(), prd.NewAnalysisRecord(map[string]any{"a": 1}))
	var se *SynthesisError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Attempts)
	assert.ErrorIs(t, err, prd.ErrMissingOverview)
}

func TestSynthesizer_VariantSelectsSchema(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{"writer": {{content: documentJSON}}}}
	o := newTestOrchestrator(t, provider, nil)

	_, err := o.synthesizer.Synthesize(context.Background(), prd.NewAnalysisRecord(map[string]any{"d": "internal AI agent for company workflow"}))
	require.NoError(t, err)
	_, err = o.synthesizer.Synthesize(context.Background(), prd.NewAnalysisRecord(map[string]any{"d": "recipe sharing app"}))
	require.NoError(t, err)

	calls := provider.callsFor("writer")
	require.Len(t, calls, 2)
	assert.Contains(t, prompt(calls[0]), "This is an enterprise AI product")
	assert.Contains(t, prompt(calls[0]), `"implementationDetails"`)
	assert.Contains(t, prompt(calls[1]), "This is a consumer product")
	assert.Contains(t, prompt(calls[1]), `"businessModel"`)
}

func TestOrchestrator_Run(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary": {{content: analysisJSON}},
		"writer":  {{content: documentJSON}},
	}}
	o := newTestOrchestrator(t, provider, &staticSearcher{})

	doc, err := o.Run(context.Background(), "onboarding helper")
	require.NoError(t, err)

	assert.Equal(t, "Forge drafts onboarding plans.", doc.Overview)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, prd.MustHave, doc.Features[0].Priority)
	assert.Equal(t, prd.ShouldHave, doc.Features[1].Priority)

	require.NotNil(t, doc.SearchSources)
	assert.Equal(t, "2026-10-17T09:00:00Z", doc.SearchSources.GeneratedAt)
	assert.Equal(t, []string{"openai.com"}, doc.SearchSources.DomainsSearched)

	writer := provider.callsFor("writer")
	require.Len(t, writer, 1)
	assert.NotContains(t, prompt(writer[0]), "_searchMetadata")
}

func TestOrchestrator_RunFailureIsPipelineError(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary": {{content: analysisJSON}},
		"writer":  {{err: errors.New("upstream closed")}},
		"writer-fallback": {{err: &llm.ProviderError{
			Provider: "fake",
			Code:     "http_502",
			Message:  "bad gateway",
			Err:      errors.New("connection reset"),
		}}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	_, err := o.Run(context.Background(), "idea")
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageSynthesis, pe.Stage)
	assert.Equal(t, "connection reset", pe.Details())
	assert.True(t, strings.HasPrefix(pe.Error(), "pipeline failed at synthesis"))
}

func TestOrchestrator_RunWithAnswers(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary":  {{content: analysisJSON}},
		"fallback": {{content: `{"productName":"Forge Pro","description":"refined"}`}},
		"writer":   {{content: documentJSON}},
	}}
	o := newTestOrchestrator(t, provider, &staticSearcher{})

	_, err := o.RunWithAnswers(context.Background(), "idea", []string{"Small teams", " ", "Slack"})
	require.NoError(t, err)

	// Refinement walks the analysis list without search, so the primary
	// model answers it; the second primary call is the refinement.
	calls := provider.callsFor("primary")
	require.Len(t, calls, 2)
	refine := prompt(calls[1])
	assert.Contains(t, refine, "- Small teams")
	assert.Contains(t, refine, "- Slack")
	assert.NotContains(t, refine, "Live search results")
	assert.True(t, calls[1].JSONMode)

	writer := provider.callsFor("writer")
	require.Len(t, writer, 1)
	assert.Contains(t, prompt(writer[0]), "Forge")
}

func TestOrchestrator_RefineFailureKeepsAnalysis(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary":  {{content: analysisJSON}, {err: errors.New("down")}},
		"fallback": {{err: errors.New("down")}},
		"writer":   {{content: documentJSON}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	doc, err := o.RunWithAnswers(context.Background(), "idea", []string{"answer"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Overview)
}

func TestOrchestrator_Questions(t *testing.T) {
	provider := &scriptedProvider{replies: map[string][]reply{
		"primary": {{content: analysisJSON}},
		"asker":   {{content: `{"questions":["Who pays?","How big is the team?","What systems exist?","Extra?"]}`}},
	}}
	o := newTestOrchestrator(t, provider, nil)

	set, err := o.Questions(context.Background(), "idea")
	require.NoError(t, err)
	assert.Equal(t, []string{"Who pays?", "How big is the team?", "What systems exist?"}, set.Questions)
	assert.Equal(t, "Forge", set.Analysis.ProductName())
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{name: "object", content: `{"questions":["a","b"]}`, want: []string{"a", "b"}},
		{name: "fenced array", content: "```json\n[\"a\", \"b\",]\n```", want: []string{"a", "b"}},
		{name: "blank entries dropped", content: `{"questions":[" ", "a", 3]}`, want: []string{"a"}},
		{name: "missing key", content: `{"q":["a"]}`, wantErr: true},
		{name: "empty", content: `{"questions":[]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuestions(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInnermost(t *testing.T) {
	base := errors.New("root cause")
	err := &PipelineError{Stage: StageAnalysis, Err: &AnalysisError{Attempts: 1, Err: base}}
	assert.Equal(t, "root cause", err.Details())
	assert.Equal(t, "", Innermost(nil))
}

func TestRunStrategies_NoStrategies(t *testing.T) {
	_, idx, attempts, err := runStrategies(context.Background(), arbor.NewLogger(), "x", nil, func(ctx context.Context, s Strategy) (int, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrNoStrategies)
	assert.Equal(t, -1, idx)
	assert.Equal(t, 0, attempts)
}

func TestRunStrategies_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, _, attempts, err := runStrategies(ctx, arbor.NewLogger(), "x", []Strategy{{Provider: "a"}}, func(ctx context.Context, s Strategy) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, 0, attempts)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&llm.ProviderError{Provider: "openai", Code: "authentication_error"}, "auth"},
		{fmt.Errorf("openai/gpt: %w", &llm.ProviderError{Code: "rate_limit"}), "rate_limit"},
		{&jsonrepair.DecodeError{Err: errors.New("no object")}, "decode"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureReason(tt.err), tt.err.Error())
	}
}
