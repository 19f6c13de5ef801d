package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/search"
	"github.com/ternarybob/prdforge/pkg/jsonrepair"
	"github.com/ternarybob/prdforge/pkg/llm"
)

const todayLayout = "January 2, 2006"

var errEmptyAnalysis = errors.New("model returned an empty analysis")

// Analyzer turns a raw idea into an AnalysisRecord.
type Analyzer struct {
	registry   *llm.Registry
	augmenter  *search.Augmenter
	prompts    *Prompts
	guidelines prd.Guidelines
	strategies []Strategy
	now        func() time.Time
	logger     arbor.ILogger
}

// NewAnalyzer creates an analyzer. augmenter may be nil, in which case
// search-augmented strategies run without insights or metadata.
func NewAnalyzer(registry *llm.Registry, augmenter *search.Augmenter, prompts *Prompts, guidelines prd.Guidelines, strategies []Strategy, now func() time.Time, logger arbor.ILogger) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		registry:   registry,
		augmenter:  augmenter,
		prompts:    prompts,
		guidelines: guidelines,
		strategies: strategies,
		now:        now,
		logger:     logger,
	}
}

// Analyze runs the analysis strategies in order. Search runs at most once,
// just before the first search-augmented strategy. The record carries
// search metadata only when a search-augmented strategy produced it.
func (a *Analyzer) Analyze(ctx context.Context, input string) (*prd.AnalysisRecord, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	now := a.now()
	var sc *search.Context
	searched := false
	augment := func(ctx context.Context) *search.Context {
		if !searched && a.augmenter != nil {
			searched = true
			sc = a.augmenter.Augment(ctx, input, nil)
			if sc.Metadata != nil {
				a.logger.Info().Strs("domains", sc.Metadata.SearchedDomains).Msgf("Search gathered %d sources", sc.Metadata.TotalSources)
			} else {
				a.logger.Info().Msg("Search returned no results")
			}
		}
		return sc
	}

	rec, _, attempts, err := runStrategies(ctx, a.logger, StageAnalysis, a.strategies, func(ctx context.Context, s Strategy) (*prd.AnalysisRecord, error) {
		var (
			prompt string
			err    error
			used   *search.Context
		)
		if s.Search {
			used = augment(ctx)
			data := analysisPrompt{
				Today:      now.Format(todayLayout),
				Period:     search.NewWindow(now).Period(),
				Guidelines: a.guidelines.Format(),
				Input:      input,
			}
			if used != nil {
				data.Period = used.Window.Period()
				data.Insights = used.Insights
			}
			prompt, err = a.prompts.render(promptAnalysis, data)
		} else {
			prompt, err = a.prompts.render(promptAnalysisFallback, analysisPrompt{
				Today:      now.Format(todayLayout),
				Guidelines: a.guidelines.Format(),
				Input:      input,
			})
		}
		if err != nil {
			return nil, err
		}

		content, err := complete(ctx, a.registry, s, prompt)
		if err != nil {
			return nil, err
		}
		fields, err := jsonrepair.Decode(content)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, errEmptyAnalysis
		}

		rec := prd.NewAnalysisRecord(fields)
		if s.Search && used != nil {
			rec.SearchMetadata = used.Metadata
		}
		return rec, nil
	})
	if err != nil {
		return nil, &AnalysisError{Attempts: attempts, Err: err}
	}
	return rec, nil
}
