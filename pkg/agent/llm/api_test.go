package llm

import (
	"context"
	"testing"
)

func TestNewCompletionRequest(t *testing.T) {
	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("test")})

	if len(req.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(req.Messages))
	}
	if req.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected MaxTokens=%d, got %d", DefaultMaxTokens, req.MaxTokens)
	}
	if req.Temperature != TemperatureDefault {
		t.Errorf("expected Temperature=%f, got %f", TemperatureDefault, req.Temperature)
	}
}

func TestMessageConstructors(t *testing.T) {
	sys := NewSystemMessage("You are a senior test engineer")
	if sys.Role != RoleSystem || sys.Content != "You are a senior test engineer" {
		t.Errorf("unexpected system message: %+v", sys)
	}
	user := NewUserMessage("Write tests")
	if user.Role != RoleUser || user.Content != "Write tests" {
		t.Errorf("unexpected user message: %+v", user)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]CompletionMessage{
		NewSystemMessage("one"),
		NewUserMessage("question"),
		NewSystemMessage("two"),
		{Role: RoleAssistant, Content: "answer"},
	})

	if system != "one\n\ntwo" {
		t.Errorf("expected joined system prompt, got %q", system)
	}
	if len(rest) != 2 || rest[0].Role != RoleUser || rest[1].Role != RoleAssistant {
		t.Errorf("unexpected remaining messages: %+v", rest)
	}
}

func TestPromptText(t *testing.T) {
	req := CompletionRequest{Messages: []CompletionMessage{NewSystemMessage("a"), NewUserMessage("b")}}
	if got := PromptText(req); got != "a\nb\n" {
		t.Errorf("expected %q, got %q", "a\nb\n", got)
	}
}

func TestLLMConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LLMConfig
		wantErr bool
	}{
		{"valid", LLMConfig{ModelName: "gpt-4o", MaxTokens: 100, Temperature: 0.2}, false},
		{"no key is allowed", LLMConfig{ModelName: "llama3.1", MaxTokens: 100}, false},
		{"missing model", LLMConfig{MaxTokens: 100}, true},
		{"zero tokens", LLMConfig{ModelName: "gpt-4o"}, true},
		{"hot temperature", LLMConfig{ModelName: "gpt-4o", MaxTokens: 1, Temperature: 2.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOperationContext(t *testing.T) {
	if got := OperationFrom(context.Background()); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	ctx := WithOperation(context.Background(), "test-plan")
	if got := OperationFrom(ctx); got != "test-plan" {
		t.Errorf("expected test-plan, got %q", got)
	}
}
