// Package openaicompat provides an llm.LLMClient for servers that speak the
// OpenAI chat completions protocol (vLLM, LM Studio, LiteLLM and similar).
package openaicompat

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llmerrors"
)

const providerName = "openai-compat"

// Client wraps the go-openai client pointed at a custom base URL.
type Client struct {
	client *openai.Client
	model  string
}

// NewCompatClient creates a client for model served at baseURL.
// apiKey may be empty for servers that do not authenticate.
func NewCompatClient(apiKey, baseURL, model string) llm.LLMClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete implements the llm.LLMClient interface.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, fmt.Sprintf("empty response from %s", c.model))
	}

	return llm.CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (c *Client) GetModelName() string {
	return c.model
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.HTTPStatusCode, providerName)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llmerrors.Classify(err, reqErr.HTTPStatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
