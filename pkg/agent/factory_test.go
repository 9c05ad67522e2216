package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
)

func setKeys(t *testing.T) {
	t.Helper()
	config.SetDecryptedSecrets(nil)
	t.Setenv(config.EnvAnthropicAPIKey, "sk-ant")
	t.Setenv(config.EnvOpenAIAPIKey, "sk-openai")
	t.Setenv(config.EnvGeminiAPIKey, "gemini")
	t.Setenv(config.EnvOpenAICompatURL, "")
	t.Setenv(config.EnvOllamaHost, "")
}

func TestCreateClientPerKind(t *testing.T) {
	setKeys(t)
	factory := NewLLMClientFactory(config.Default(), nil)

	tests := []struct {
		kind  string
		model string
	}{
		{config.KindTestPlan, config.DefaultPlanModel},
		{config.KindDependencyExtraction, config.DefaultDependencyModel},
		{config.KindTestCode, config.DefaultCodeModel},
		{config.KindRefinement, config.DefaultRefinementModel},
		{config.KindJudgment, config.DefaultJudgmentModel},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			client, err := factory.CreateClient(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.model, client.GetModelName())
		})
	}

	_, err := factory.CreateClient("haiku")
	assert.Error(t, err)
}

func TestCreateClientsSharesModels(t *testing.T) {
	setKeys(t)
	factory := NewLLMClientFactory(config.Default(), nil)

	clients, err := factory.CreateClients(config.KindTestPlan, config.KindTestCode, config.KindJudgment)
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, clients[config.KindTestPlan].GetModelName(), clients[config.KindTestCode].GetModelName())
	assert.Equal(t, config.DefaultJudgmentModel, clients[config.KindJudgment].GetModelName())
}

func TestCreateClientForModel(t *testing.T) {
	setKeys(t)
	factory := NewLLMClientFactory(config.Default(), nil)

	client, err := factory.CreateClientForModel("ollama:phi4")
	require.NoError(t, err)
	assert.Equal(t, "phi4", client.GetModelName())

	_, err = factory.CreateClientForModel("mystery-model")
	assert.Error(t, err)

	_, err = factory.CreateClientForModel("compat:llama3.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvOpenAICompatURL)

	t.Setenv(config.EnvOpenAICompatURL, "http://localhost:8000/v1")
	client, err = factory.CreateClientForModel("compat:llama3.1")
	require.NoError(t, err)
	assert.Equal(t, "llama3.1", client.GetModelName())
}

func TestCreateClientMissingKey(t *testing.T) {
	setKeys(t)
	t.Setenv(config.EnvOpenAIAPIKey, "")
	factory := NewLLMClientFactory(config.Default(), nil)

	_, err := factory.CreateClient(config.KindJudgment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvOpenAIAPIKey)
}
