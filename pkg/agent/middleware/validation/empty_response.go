// Package validation provides response validation middleware for LLM clients.
package validation

import (
	"context"
	"strings"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llmerrors"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
)

const promptLogChars = 2000

// EmptyResponseMiddleware rejects responses whose content is empty or only
// whitespace with an ErrorTypeEmptyResponse error. The request is not
// retried; the prompt is logged under the "llm" debug domain.
func EmptyResponseMiddleware() llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err == nil && strings.TrimSpace(resp.Content) == "" {
					err = llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model "+next.GetModelName()+" returned no content")
				}
				if llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
					logx.Debug(ctx, "llm", "empty response from %s for %s (stop_reason=%q), prompt: %s",
						next.GetModelName(), llm.OperationFrom(ctx), resp.StopReason,
						llmerrors.SanitizePrompt(llm.PromptText(req), promptLogChars))
				}
				return resp, err //nolint:wrapcheck // Middleware intentionally passes through errors unchanged
			},
			next.GetModelName,
		)
	}
}
