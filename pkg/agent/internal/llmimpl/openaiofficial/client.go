// Package openaiofficial provides the OpenAI implementation of llm.LLMClient
// on top of the official openai-go SDK and its Responses API.
package openaiofficial

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llmerrors"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
)

const providerName = "openai"

// OfficialClient wraps the official OpenAI Go client to implement llm.LLMClient.
type OfficialClient struct {
	client openai.Client
	model  string
}

// NewOfficialClient creates an OpenAI client for model. SDK-level retries are
// disabled; a failed call is reported to the caller as-is.
func NewOfficialClient(apiKey, model string, opts ...option.RequestOption) llm.LLMClient {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &OfficialClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete implements the llm.LLMClient interface.
func (o *OfficialClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	instructions, inputText, err := buildInput(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, err.Error())
	}

	// Cap MaxTokens to the model's limit to prevent API errors.
	maxTokens := in.MaxTokens
	if info, ok := config.KnownModels[o.model]; ok && info.MaxOutputTokens > 0 && maxTokens > info.MaxOutputTokens {
		maxTokens = info.MaxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if supportsTemperature(o.model) {
		params.Temperature = openai.Float(float64(in.Temperature))
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	return llm.CompletionResponse{
		Content:    resp.OutputText(),
		StopReason: string(resp.Status),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (o *OfficialClient) GetModelName() string {
	return o.model
}

// buildInput flattens the conversation into the single input string the
// Responses API accepts. System messages become the instructions field.
func buildInput(messages []llm.CompletionMessage) (instructions, input string, err error) {
	if len(messages) == 0 {
		return "", "", fmt.Errorf("message list cannot be empty")
	}
	instructions, rest := llm.SplitSystem(messages)
	if len(rest) == 0 {
		return "", "", fmt.Errorf("must have at least one non-system message")
	}

	var sb strings.Builder
	for i := range rest {
		switch rest[i].Role {
		case llm.RoleUser:
			sb.WriteString(rest[i].Content)
			sb.WriteString("\n\n")
		case llm.RoleAssistant:
			fmt.Fprintf(&sb, "Assistant: %s\n\n", rest[i].Content)
		default:
			return "", "", fmt.Errorf("unsupported message role: %s", rest[i].Role)
		}
	}
	return instructions, strings.TrimRight(sb.String(), "\n"), nil
}

// supportsTemperature reports whether model accepts a sampling temperature.
// Reasoning models (o-series, gpt-5) reject it.
func supportsTemperature(model string) bool {
	return strings.HasPrefix(model, "gpt-4")
}

// classifyError maps openai-go errors to llmerrors types.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode, providerName)
	}
	return llmerrors.Classify(err, 0, providerName)
}
