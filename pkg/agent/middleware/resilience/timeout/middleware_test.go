package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
)

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	<-ctx.Done()
	return llm.CompletionResponse{}, ctx.Err()
}

func (blockingClient) GetModelName() string { return "blocking" }

func TestMiddlewareTimesOut(t *testing.T) {
	client := Middleware(20 * time.Millisecond)(blockingClient{})

	start := time.Now()
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
	if client.GetModelName() != "blocking" {
		t.Errorf("model name not delegated")
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	base := blockingClient{}
	if got := Middleware(0)(base); got != llm.LLMClient(base) {
		t.Errorf("expected zero duration to return the client unchanged")
	}
}
