// Package pipeline runs the two-stage generation flow: an idea is analyzed
// (optionally with live search context), then synthesized into a validated
// product requirements document. Each stage walks an ordered list of
// model strategies and stops at the first success.
package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/search"
	"github.com/ternarybob/prdforge/pkg/llm"
)

// Options configures an Orchestrator.
type Options struct {
	Registry   *llm.Registry
	Augmenter  *search.Augmenter
	Prompts    *Prompts
	Guidelines prd.Guidelines
	Analysis   []Strategy
	Synthesis  []Strategy
	Questions  []Strategy
	Now        func() time.Time
	Logger     arbor.ILogger
}

// OptionsFromConfig fills the guidelines and strategies from cfg.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	g := cfg.Guidelines
	return Options{
		Guidelines: prd.NewGuidelines(g.Audience, g.Tone, g.Principles, g.RequiredSections),
		Analysis:   StrategiesFromConfig(cfg.Analysis),
		Synthesis:  StrategiesFromConfig(cfg.Synthesis),
		Questions:  StrategiesFromConfig(cfg.Questions),
	}
}

// Orchestrator sequences analysis and synthesis.
type Orchestrator struct {
	analyzer    *Analyzer
	synthesizer *Synthesizer
	questioner  *Questioner
	logger      arbor.ILogger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	// Answer folding reuses the analysis models without search.
	refine := make([]Strategy, len(opts.Analysis))
	for i, s := range opts.Analysis {
		s.Search = false
		s.JSONMode = true
		refine[i] = s
	}

	return &Orchestrator{
		analyzer:    NewAnalyzer(opts.Registry, opts.Augmenter, opts.Prompts, opts.Guidelines, opts.Analysis, opts.Now, opts.Logger),
		synthesizer: NewSynthesizer(opts.Registry, opts.Prompts, opts.Guidelines, opts.Synthesis, opts.Logger),
		questioner:  NewQuestioner(opts.Registry, opts.Prompts, opts.Questions, refine, opts.Logger),
		logger:      opts.Logger,
	}
}

// Run generates a document for input.
func (o *Orchestrator) Run(ctx context.Context, input string) (*prd.Document, error) {
	return o.RunWithAnswers(ctx, input, nil)
}

// RunWithAnswers generates a document for input, folding follow-up
// answers into the analysis before synthesis. A failed refinement falls
// back to the unrefined analysis. Failures are reported as *PipelineError.
func (o *Orchestrator) RunWithAnswers(ctx context.Context, input string, answers []string) (*prd.Document, error) {
	start := time.Now()

	analysis, err := o.analyzer.Analyze(ctx, input)
	if err != nil {
		o.logger.Error().Err(err).Msg("Analysis stage failed")
		return nil, &PipelineError{Stage: StageAnalysis, Err: err}
	}

	if len(nonBlank(answers)) > 0 {
		refined, err := o.questioner.Refine(ctx, analysis, answers)
		if err != nil {
			o.logger.Warn().Err(err).Msg("Refinement failed, using unrefined analysis")
		} else {
			analysis = refined
		}
	}

	doc, err := o.synthesizer.Synthesize(ctx, analysis)
	if err != nil {
		o.logger.Error().Err(err).Msg("Synthesis stage failed")
		return nil, &PipelineError{Stage: StageSynthesis, Err: err}
	}

	o.logger.Info().
		Str("duration", time.Since(start).Round(time.Millisecond).String()).
		Msgf("Generated document with %d features", len(doc.Features))
	return doc, nil
}

// QuestionSet is a preliminary analysis plus follow-up questions.
type QuestionSet struct {
	Questions []string            `json:"questions"`
	Analysis  *prd.AnalysisRecord `json:"analysis"`
}

// Questions analyzes input and drafts follow-up questions for it.
func (o *Orchestrator) Questions(ctx context.Context, input string) (*QuestionSet, error) {
	analysis, err := o.analyzer.Analyze(ctx, input)
	if err != nil {
		return nil, &PipelineError{Stage: StageAnalysis, Err: err}
	}

	questions, err := o.questioner.Questions(ctx, input, analysis)
	if err != nil {
		return nil, &PipelineError{Stage: StageQuestions, Err: err}
	}
	return &QuestionSet{Questions: questions, Analysis: analysis}, nil
}
