package ratelimit

import (
	"context"
	"time"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/metrics"
)

// queueWaitThreshold is the wait below which a request is not counted as throttled.
const queueWaitThreshold = 5 * time.Millisecond

// Middleware returns a middleware that waits on provider's limiter before
// each request. Waiting never retries; it only delays the single call.
func Middleware(limiterMap *ProviderLimiterMap, provider string, recorder metrics.Recorder) llm.Middleware {
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.GetModelName()

				limiter, err := limiterMap.GetLimiter(provider)
				if err != nil {
					recorder.IncThrottle(model, "no_limiter")
					return llm.CompletionResponse{}, err
				}

				start := time.Now()
				if err := limiter.Wait(ctx); err != nil {
					recorder.IncThrottle(model, "rate_limit")
					return llm.CompletionResponse{}, err //nolint:wrapcheck // Middleware should pass through errors unchanged
				}
				if wait := time.Since(start); wait >= queueWaitThreshold {
					recorder.IncThrottle(model, "rate_limit")
					recorder.ObserveQueueWait(model, wait)
				}

				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
