package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llmerrors"
)

func TestGetModelName(t *testing.T) {
	client := NewCompatClient("", "http://localhost:8000/v1", "llama3.1")
	assert.Equal(t, "llama3.1", client.GetModelName())
}

func TestCompleteAgainstServer(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama3.1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "1. Test addition"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 5, "total_tokens": 35}
		}`)
	}))
	defer server.Close()

	client := NewCompatClient("", server.URL, "llama3.1")
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage("plan tests"),
			llm.NewUserMessage("class Calc {}"),
		},
		MaxTokens: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "1. Test addition", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, llm.Usage{PromptTokens: 30, CompletionTokens: 5}, resp.Usage)
	assert.Equal(t, "llama3.1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, string(llm.RoleSystem), got.Messages[0].Role)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType llmerrors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key", "type": "auth"}}`, llmerrors.ErrorTypeAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down", "type": "rate"}}`, llmerrors.ErrorTypeRateLimit},
		{"server error", http.StatusBadGateway, `{"error": {"message": "upstream", "type": "server"}}`, llmerrors.ErrorTypeTransient},
		{"no choices", http.StatusOK, `{"id": "x", "choices": []}`, llmerrors.ErrorTypeEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewCompatClient("k", server.URL, "llama3.1")
			_, err := client.Complete(context.Background(), llm.CompletionRequest{
				Messages:  []llm.CompletionMessage{llm.NewUserMessage("q")},
				MaxTokens: 10,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantType, llmerrors.TypeOf(err))
		})
	}
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	client := NewCompatClient("", "http://127.0.0.1:1", "llama3.1")
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}
