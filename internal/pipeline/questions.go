package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/pkg/jsonrepair"
	"github.com/ternarybob/prdforge/pkg/llm"
)

// MaxQuestions bounds the follow-up questions returned for an idea.
const MaxQuestions = 3

var errNoQuestions = errors.New("model returned no questions")

// Questioner drafts follow-up questions and folds answers back into an
// analysis.
type Questioner struct {
	registry *llm.Registry
	prompts  *Prompts
	ask      []Strategy
	refine   []Strategy
	logger   arbor.ILogger
}

// NewQuestioner creates a questioner. ask drives question drafting and
// refine drives answer folding.
func NewQuestioner(registry *llm.Registry, prompts *Prompts, ask, refine []Strategy, logger arbor.ILogger) *Questioner {
	return &Questioner{registry: registry, prompts: prompts, ask: ask, refine: refine, logger: logger}
}

// Questions returns up to MaxQuestions follow-up questions for input.
func (q *Questioner) Questions(ctx context.Context, input string, analysis *prd.AnalysisRecord) ([]string, error) {
	prompt, err := q.prompts.render(promptQuestions, questionsPrompt{
		Input:    strings.TrimSpace(input),
		Analysis: analysis.JSON(false),
	})
	if err != nil {
		return nil, err
	}

	out, _, attempts, err := runStrategies(ctx, q.logger, StageQuestions, q.ask, func(ctx context.Context, s Strategy) ([]string, error) {
		content, err := complete(ctx, q.registry, s, prompt)
		if err != nil {
			return nil, err
		}
		return ParseQuestions(content)
	})
	if err != nil {
		return nil, fmt.Errorf("questions failed after %d attempt(s): %w", attempts, err)
	}
	return out, nil
}

// ParseQuestions accepts {"questions": [...]} or a bare JSON array of
// strings. Blank entries are dropped and at most MaxQuestions are kept.
func ParseQuestions(content string) ([]string, error) {
	var raw []any

	trimmed := strings.TrimSpace(jsonrepair.StripFences(content))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(jsonrepair.Repair(trimmed)), &raw); err != nil {
			return nil, fmt.Errorf("parse questions: %w", err)
		}
	} else {
		var wrapped struct {
			Questions []any `json:"questions"`
		}
		if err := jsonrepair.DecodeInto(content, &wrapped); err != nil {
			return nil, err
		}
		raw = wrapped.Questions
	}

	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == MaxQuestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, errNoQuestions
	}
	return out, nil
}

// Refine folds answers into analysis. Blank answers are ignored; with no
// answers the analysis is returned unchanged. Search metadata carries over
// to the refined record.
func (q *Questioner) Refine(ctx context.Context, analysis *prd.AnalysisRecord, answers []string) (*prd.AnalysisRecord, error) {
	answers = nonBlank(answers)
	if len(answers) == 0 {
		return analysis, nil
	}

	prompt, err := q.prompts.render(promptRefine, refinePrompt{
		Analysis: analysis.JSON(false),
		Answers:  answers,
	})
	if err != nil {
		return nil, err
	}

	rec, _, attempts, err := runStrategies(ctx, q.logger, StageRefine, q.refine, func(ctx context.Context, s Strategy) (*prd.AnalysisRecord, error) {
		content, err := complete(ctx, q.registry, s, prompt)
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
		return prd.NewAnalysisRecord(fields), nil
	})
	if err != nil {
		return nil, fmt.Errorf("refine failed after %d attempt(s): %w", attempts, err)
	}
	rec.SearchMetadata = analysis.SearchMetadata
	return rec, nil
}

func nonBlank(list []string) []string {
	var out []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
