package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements Provider for testing
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Model: req.Model, Content: "test response", FinishReason: "stop"}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&mockProvider{name: "b"}, &mockProvider{name: "a"})

	assert.Equal(t, []string{"a", "b"}, r.Names())

	p, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		fmt.Fprint(w, `{"id":"c1","model":"gpt-4o","choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"length"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL)
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model:       "gpt-4o",
		System:      "be terse",
		Messages:    []Message{UserMessage("hi")},
		MaxTokens:   100,
		Temperature: 0.3,
		JSONMode:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "max_tokens", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 100, got.MaxTokens)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		rateLimit bool
		auth      bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, true, false},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, false, true},
		{"server error", http.StatusBadGateway, `upstream failed`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenAIProvider("k", srv.URL).Complete(context.Background(), &CompletionRequest{Model: "m"})
			require.Error(t, err)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "openai", pe.Provider)
			assert.Equal(t, tt.rateLimit, IsRateLimitError(err))
			assert.Equal(t, tt.auth, IsAuthError(err))
		})
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		fmt.Fprint(w, `{"id":"msg_1","model":"claude","stop_reason":"end_turn","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],"usage":{"input_tokens":5,"output_tokens":6}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", srv.URL)
	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model:    "claude",
		Messages: []Message{{Role: "system", Content: "sys"}, UserMessage("hello")},
	})
	require.NoError(t, err)

	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 11, resp.Usage.TotalTokens)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, 4096, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content[0].Text)
}

func TestAnthropicProvider_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"too many"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropicProvider("key", srv.URL).Complete(context.Background(), &CompletionRequest{Model: "claude"})
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.Contains(t, err.Error(), "too many")
}

func TestOllamaProvider_Complete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"llama3","message":{"role":"assistant","content":"{}"},"done":true,"prompt_eval_count":2,"eval_count":3}`)
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(srv.URL).Complete(context.Background(), &CompletionRequest{
		Model:    "llama3",
		System:   "sys",
		Messages: []Message{UserMessage("u")},
		JSONMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "")
	assert.Error(t, err)
}
