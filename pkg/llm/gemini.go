package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface using the Gemini SDK.
type GeminiProvider struct {
	client   *genai.Client
	thinking string
}

// NewGeminiProvider creates a Gemini provider.
// thinking is one of NONE, LOW, NORMAL, HIGH; empty leaves the model default.
func NewGeminiProvider(ctx context.Context, apiKey, thinking string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, thinking: thinking}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete generates a completion.
func (p *GeminiProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if p.thinking != "" {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: thinkingLevel(p.thinking),
		}
	}

	result, err := p.client.Models.GenerateContent(ctx, req.Model, toGeminiContents(req.Messages), config)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Code: "generate", Message: "generate content", Err: err}
	}

	if result == nil || len(result.Candidates) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Code: "empty_response", Message: "empty response from API"}
	}

	// Extract text from response parts
	var text strings.Builder
	candidate := result.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}

	if text.Len() == 0 {
		return nil, &ProviderError{Provider: p.Name(), Code: "empty_response", Message: "no text in response"}
	}

	resp := &CompletionResponse{
		ID:           result.ResponseID,
		Model:        req.Model,
		Content:      text.String(),
		FinishReason: "stop",
	}
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		resp.FinishReason = "max_tokens"
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

func toGeminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

// thinkingLevel converts string thinking level to SDK enum.
func thinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(level) {
	case "NONE":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "HIGH":
		return genai.ThinkingLevelHigh
	default:
		return genai.ThinkingLevelMedium
	}
}
