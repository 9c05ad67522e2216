package agent

import (
	"fmt"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/internal/llmimpl/anthropic"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/internal/llmimpl/google"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/internal/llmimpl/ollama"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/internal/llmimpl/openaicompat"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/internal/llmimpl/openaiofficial"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/resilience/ratelimit"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/resilience/timeout"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/validation"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
)

// LLMClientFactory creates LLM clients with properly configured middleware chains.
type LLMClientFactory struct {
	config       *config.Config
	recorder     metrics.Recorder
	rateLimitMap *ratelimit.ProviderLimiterMap
	logger       *logx.Logger
}

// NewLLMClientFactory creates a factory for cfg. recorder may be nil.
func NewLLMClientFactory(cfg *config.Config, recorder metrics.Recorder) *LLMClientFactory {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &LLMClientFactory{
		config:       cfg,
		recorder:     recorder,
		rateLimitMap: ratelimit.NewProviderLimiterMap(cfg.LLM.RateLimits),
		logger:       logx.NewLogger("llm"),
	}
}

// CreateClient creates the client assigned to a synthesis kind such as
// config.KindTestCode.
func (f *LLMClientFactory) CreateClient(kind string) (llm.LLMClient, error) {
	modelName := f.config.Models.ModelFor(kind)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for %s", kind)
	}
	return f.CreateClientForModel(modelName)
}

// CreateClients creates one client per kind. Kinds that share a model share
// a client.
func (f *LLMClientFactory) CreateClients(kinds ...string) (map[string]llm.LLMClient, error) {
	byModel := make(map[string]llm.LLMClient)
	out := make(map[string]llm.LLMClient, len(kinds))
	for _, kind := range kinds {
		modelName := f.config.Models.ModelFor(kind)
		if client, ok := byModel[modelName]; ok {
			out[kind] = client
			continue
		}
		client, err := f.CreateClient(kind)
		if err != nil {
			return nil, err
		}
		byModel[modelName] = client
		out[kind] = client
	}
	return out, nil
}

// CreateClientForModel creates a client for modelName with the full middleware chain:
//
//	Metrics -> RateLimit -> EmptyResponse -> Timeout -> RawClient
//
// There is no retry layer; a failed call surfaces to the caller.
func (f *LLMClientFactory) CreateClientForModel(modelName string) (llm.LLMClient, error) {
	provider, err := config.GetModelProvider(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to determine provider for model %s: %w", modelName, err)
	}

	rawClient, err := newRawClient(provider, config.ProviderModelName(modelName))
	if err != nil {
		return nil, err
	}

	return llm.Chain(rawClient,
		metrics.Middleware(f.recorder, nil, f.logger),
		ratelimit.Middleware(f.rateLimitMap, provider, f.recorder),
		validation.EmptyResponseMiddleware(),
		timeout.Middleware(f.config.LLM.Timeout),
	), nil
}

// newRawClient builds the provider client. Credentials come from the
// decrypted secrets file or the environment.
func newRawClient(provider, modelName string) (llm.LLMClient, error) {
	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClient(apiKey, modelName), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClient(apiKey, modelName), nil
	case config.ProviderGoogle:
		return google.NewGeminiClient(apiKey, modelName, ""), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(apiKey, modelName), nil
	case config.ProviderOpenAICompat:
		baseURL, err := config.GetOpenAICompatBaseURL()
		if err != nil {
			return nil, err
		}
		return openaicompat.NewCompatClient(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
