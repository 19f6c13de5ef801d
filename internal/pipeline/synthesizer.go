package pipeline

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/pkg/jsonrepair"
	"github.com/ternarybob/prdforge/pkg/llm"
)

const enterpriseSchema = `{
  "overview": "2-3 paragraphs: the product, the teams it serves, and the business outcome",
  "problem": "the operational problem, who feels it, and its current cost",
  "goals": {"primary": "measurable goal", "secondary": "measurable goal"},
  "competitiveAnalysis": {
    "referenceServices": {"Service name": "strengths and gaps"},
    "differentiators": ["differentiator"],
    "marketGap": "opportunity"
  },
  "technicalApproach": {
    "architecture": "system architecture",
    "models": "AI models and providers with versions",
    "integrations": ["internal system or API"],
    "security": "access control, data handling and audit"
  },
  "implementationDetails": {
    "phases": [{"name": "phase", "duration": "weeks", "deliverables": ["deliverable"]}],
    "team": "required roles",
    "risks": ["risk and mitigation"]
  },
  "features": [
    {"title": "feature", "priority": "Must-have", "description": "what it does and why it matters"}
  ],
  "metrics": {"adoption": "target", "efficiency": "target", "quality": "target"}
}`

const consumerSchema = `{
  "overview": "2-3 paragraphs: the product, who it is for, and why they will love it",
  "problem": "the user problem and how people cope today",
  "goals": {"primary": "measurable goal", "secondary": "measurable goal"},
  "competitiveAnalysis": {
    "referenceServices": {"Service name": "strengths and gaps"},
    "differentiators": ["differentiator"],
    "marketGap": "opportunity"
  },
  "technicalApproach": {
    "architecture": "system architecture",
    "stack": ["technology"],
    "integrations": ["third-party service"]
  },
  "businessModel": {
    "revenue": "pricing and revenue streams",
    "acquisition": "growth channels",
    "costs": "main cost drivers"
  },
  "features": [
    {"title": "feature", "priority": "Must-have", "description": "what it does and why it matters"}
  ],
  "metrics": {"acquisition": "target", "engagement": "target", "revenue": "target"}
}`

const enterpriseNotes = `## Document focus
This is an enterprise AI product. Emphasize workflow integration, security and compliance, rollout phases, and measurable operational impact. Include implementationDetails.`

const consumerNotes = `## Document focus
This is a consumer product. Emphasize user experience, differentiation, growth, and a sustainable business model. Include businessModel.`

// Synthesizer turns an AnalysisRecord into a validated Document.
type Synthesizer struct {
	registry   *llm.Registry
	prompts    *Prompts
	guidelines prd.Guidelines
	strategies []Strategy
	logger     arbor.ILogger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(registry *llm.Registry, prompts *Prompts, guidelines prd.Guidelines, strategies []Strategy, logger arbor.ILogger) *Synthesizer {
	return &Synthesizer{
		registry:   registry,
		prompts:    prompts,
		guidelines: guidelines,
		strategies: strategies,
		logger:     logger,
	}
}

// Synthesize classifies analysis once, then tries each strategy with the
// matching schema. Output that fails validation counts as a failed
// strategy. Search provenance is copied from the analysis onto the result.
func (s *Synthesizer) Synthesize(ctx context.Context, analysis *prd.AnalysisRecord) (*prd.Document, error) {
	if analysis == nil {
		return nil, &SynthesisError{Err: errors.New("analysis is nil")}
	}

	variant := prd.Classify(analysis)
	s.logger.Info().Str("variant", string(variant)).Msg("Synthesizing document")

	data := synthesisPrompt{
		Guidelines:   s.guidelines.Format(),
		VariantNotes: consumerNotes,
		Analysis:     analysis.JSON(false),
		Schema:       consumerSchema,
	}
	if variant == prd.Enterprise {
		data.VariantNotes = enterpriseNotes
		data.Schema = enterpriseSchema
	}
	prompt, err := s.prompts.render(promptSynthesis, data)
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}

	doc, _, attempts, err := runStrategies(ctx, s.logger, StageSynthesis, s.strategies, func(ctx context.Context, st Strategy) (*prd.Document, error) {
		content, err := complete(ctx, s.registry, st, prompt)
		if err != nil {
			return nil, err
		}
		fields, err := jsonrepair.Decode(content)
		if err != nil {
			return nil, err
		}
		doc, err := prd.DocumentFromMap(fields)
		if err != nil {
			return nil, err
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		return doc, nil
	})
	if err != nil {
		return nil, &SynthesisError{Attempts: attempts, Err: err}
	}

	doc.SearchSources = analysis.SearchMetadata.Provenance()
	return doc, nil
}
