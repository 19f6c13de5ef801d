package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultTimeout = 120 * time.Second
)

// OpenAIProvider implements the Provider interface for the OpenAI
// chat completions API and compatible endpoints.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
// An empty baseURL selects https://api.openai.com/v1.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: openAIDefaultTimeout,
		},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatCompletionMsg `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    float64             `json:"temperature,omitempty"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Complete generates a completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	messages := make([]chatCompletionMsg, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatCompletionMsg{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, chatCompletionMsg{Role: msg.Role, Content: msg.Content})
	}

	reqBody := chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	status, body, err := postJSON(ctx, p.httpClient, p.Name(), p.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey}, reqBody)
	if err != nil {
		return nil, err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if status != http.StatusOK {
			return nil, &ProviderError{Provider: p.Name(), Code: statusCode(status, ""), Message: string(body)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if status != http.StatusOK || chatResp.Error != nil {
		msg := string(body)
		code := ""
		if chatResp.Error != nil {
			msg = chatResp.Error.Message
			code = chatResp.Error.Code
		}
		return nil, &ProviderError{Provider: p.Name(), Code: statusCode(status, code), Message: msg}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Code: "empty_response", Message: "no choices in response"}
	}

	finish := chatResp.Choices[0].FinishReason
	if finish == "length" {
		finish = "max_tokens"
	}

	return &CompletionResponse{
		ID:           chatResp.ID,
		Model:        chatResp.Model,
		Content:      chatResp.Choices[0].Message.Content,
		FinishReason: finish,
		Usage: TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}
