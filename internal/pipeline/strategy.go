package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/pkg/jsonrepair"
	"github.com/ternarybob/prdforge/pkg/llm"
)

// Strategy is one provider/model/parameter choice in a stage's ordered
// fallback list.
type Strategy struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
	// Search marks the strategy as search-augmented: its prompt carries
	// live search insights and its result carries search metadata.
	Search bool
}

func (s Strategy) String() string {
	return s.Provider + "/" + s.Model
}

// StrategiesFromConfig converts configured strategies.
func StrategiesFromConfig(list []config.StrategyConfig) []Strategy {
	out := make([]Strategy, len(list))
	for i, c := range list {
		out[i] = Strategy{
			Provider:    c.Provider,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			JSONMode:    c.JSONMode,
			Search:      c.Search,
		}
	}
	return out
}

const systemJSON = "You are a meticulous product strategist. Reply with one JSON object and no other text."

// complete sends prompt to the strategy's provider.
func complete(ctx context.Context, registry *llm.Registry, s Strategy, prompt string) (string, error) {
	provider, err := registry.Get(s.Provider)
	if err != nil {
		return "", err
	}
	resp, err := provider.Complete(ctx, &llm.CompletionRequest{
		Model:       s.Model,
		System:      systemJSON,
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		JSONMode:    s.JSONMode,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// runStrategies tries each strategy in order until one succeeds. Each
// strategy is attempted once. It returns the winning result, the index
// of the winning strategy, and the number of attempts made. On total
// failure the error is the last strategy's error.
func runStrategies[T any](
	ctx context.Context,
	logger arbor.ILogger,
	stage string,
	strategies []Strategy,
	try func(ctx context.Context, s Strategy) (T, error),
) (T, int, int, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, -1, 0, ErrNoStrategies
	}

	var lastErr error
	attempts := 0
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		attempts++
		logger.Info().Str("stage", stage).Str("strategy", s.String()).Msgf("Attempt %d/%d", i+1, len(strategies))

		out, err := try(ctx, s)
		if err == nil {
			if i > 0 {
				logger.Info().Str("stage", stage).Str("strategy", s.String()).Msg("Fallback strategy succeeded")
			}
			return out, i, attempts, nil
		}

		lastErr = fmt.Errorf("%s: %w", s, err)
		logger.Warn().Err(err).Str("stage", stage).Str("strategy", s.String()).Str("reason", failureReason(err)).Msg("Strategy failed")

		var de *jsonrepair.DecodeError
		if errors.As(err, &de) {
			logger.Debug().Str("raw", de.Raw).Str("cleaned", de.Cleaned).Msg("Undecodable model output")
		}
	}
	return zero, -1, attempts, lastErr
}

// failureReason classifies err for the fallback log line.
func failureReason(err error) string {
	var de *jsonrepair.DecodeError
	switch {
	case llm.IsAuthError(err):
		return "auth"
	case llm.IsRateLimitError(err):
		return "rate_limit"
	case errors.As(err, &de):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
