// Package config provides configuration loading, validation, and model metadata for testgen.
// It handles YAML/TOML config files, provider inference from model names, and API key lookup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
)

// Project directory constants.
const (
	ProjectConfigDir = ".testgen"
	DefaultHistoryDB = "history.db"
	DefaultLogDir    = "logs"
)

// Synthesis kind names as they appear in config files.
const (
	KindTestPlan             = "test-plan"
	KindDependencyExtraction = "dependency-extraction"
	KindTestCode             = "test-code"
	KindRefinement           = "refinement"
	KindJudgment             = "judgment"
)

// Evaluation strategy names.
const (
	StrategyJudge   = "judge"
	StrategySmoke   = "smoke"
	StrategyPattern = "pattern"
)

// Default model assignments per synthesis kind.
const (
	DefaultPlanModel       = "claude-sonnet-4-5"
	DefaultDependencyModel = "gemini-2.5-pro"
	DefaultCodeModel       = "claude-sonnet-4-5"
	DefaultRefinementModel = "claude-sonnet-4-5"
	DefaultJudgmentModel   = "gpt-4o"
)

// Provider constants.
const (
	ProviderAnthropic    = "anthropic"
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderOllama       = "ollama"
	ProviderOpenAICompat = "openai-compat"
)

// Environment variable names for provider credentials.
const (
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvGoogleAPIKey       = "GOOGLE_API_KEY"
	EnvOllamaHost         = "OLLAMA_HOST"
	EnvOpenAICompatURL    = "OPENAI_COMPAT_BASE_URL"
	EnvOpenAICompatAPIKey = "OPENAI_COMPAT_API_KEY"
	EnvPassword           = "TESTGEN_PASSWORD"
)

const defaultOllamaHost = "http://localhost:11434"

// Config is the on-disk configuration for a testgen project.
type Config struct {
	Models     ModelsConfig     `yaml:"models" toml:"models"`
	LLM        LLMConfig        `yaml:"llm" toml:"llm"`
	Exec       ExecConfig       `yaml:"exec" toml:"exec"`
	Evaluation EvaluationConfig `yaml:"evaluation" toml:"evaluation"`
	History    HistoryConfig    `yaml:"history" toml:"history"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Debug      DebugConfig      `yaml:"debug" toml:"debug"`
}

// ModelsConfig assigns a model to each synthesis kind.
// Empty entries fall back to Default, then to the built-in assignment.
type ModelsConfig struct {
	Default              string `yaml:"default" toml:"default"`
	TestPlan             string `yaml:"test_plan" toml:"test_plan"`
	DependencyExtraction string `yaml:"dependency_extraction" toml:"dependency_extraction"`
	TestCode             string `yaml:"test_code" toml:"test_code"`
	Refinement           string `yaml:"refinement" toml:"refinement"`
	Judgment             string `yaml:"judgment" toml:"judgment"`
}

// LLMConfig holds request parameters shared by every provider.
type LLMConfig struct {
	MaxTokens   int                       `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32                   `yaml:"temperature" toml:"temperature"`
	Timeout     time.Duration             `yaml:"timeout" toml:"timeout"`
	RateLimits  map[string]ProviderLimits `yaml:"rate_limits" toml:"rate_limits"`
}

// ProviderLimits defines request rate limiting for one API provider.
type ProviderLimits struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst"`
}

// ExecConfig controls how the test command is run.
type ExecConfig struct {
	Shell   string        `yaml:"shell" toml:"shell"`
	WorkDir string        `yaml:"workdir" toml:"workdir"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// EvaluationConfig selects how test output is judged.
type EvaluationConfig struct {
	Strategy       string `yaml:"strategy" toml:"strategy"`
	SuccessPattern string `yaml:"success_pattern" toml:"success_pattern"`
	FailurePattern string `yaml:"failure_pattern" toml:"failure_pattern"`
	// JudgeMaxTokens caps the test output sent to the judge; the tail is kept.
	// Zero sends the whole output.
	JudgeMaxTokens int `yaml:"judge_max_tokens" toml:"judge_max_tokens"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Disabled bool   `yaml:"disabled" toml:"disabled"`
	Path     string `yaml:"path" toml:"path"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" toml:"textfile"`
	Listen   string `yaml:"listen" toml:"listen"`
}

// DebugConfig controls debug logging.
type DebugConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Domains []string `yaml:"domains" toml:"domains"`
	LogDir  string   `yaml:"log_dir" toml:"log_dir"`
}

// ProviderDefaults defines default rate limits for each provider.
//
//nolint:gochecknoglobals // Intentional global for provider defaults
var ProviderDefaults = map[string]ProviderLimits{
	ProviderAnthropic:    {RequestsPerMinute: 50, Burst: 5},
	ProviderOpenAI:       {RequestsPerMinute: 60, Burst: 5},
	ProviderGoogle:       {RequestsPerMinute: 60, Burst: 5},
	ProviderOllama:       {RequestsPerMinute: 0, Burst: 0},
	ProviderOpenAICompat: {RequestsPerMinute: 60, Burst: 5},
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Models.TestPlan == "" {
		cfg.Models.TestPlan = firstNonEmpty(cfg.Models.Default, DefaultPlanModel)
	}
	if cfg.Models.DependencyExtraction == "" {
		cfg.Models.DependencyExtraction = firstNonEmpty(cfg.Models.Default, DefaultDependencyModel)
	}
	if cfg.Models.TestCode == "" {
		cfg.Models.TestCode = firstNonEmpty(cfg.Models.Default, DefaultCodeModel)
	}
	if cfg.Models.Refinement == "" {
		cfg.Models.Refinement = firstNonEmpty(cfg.Models.Default, DefaultRefinementModel)
	}
	if cfg.Models.Judgment == "" {
		cfg.Models.Judgment = firstNonEmpty(cfg.Models.Default, DefaultJudgmentModel)
	}

	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 8000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 3 * time.Minute
	}
	if cfg.LLM.RateLimits == nil {
		cfg.LLM.RateLimits = make(map[string]ProviderLimits, len(ProviderDefaults))
	}
	for provider, limits := range ProviderDefaults {
		if _, ok := cfg.LLM.RateLimits[provider]; !ok {
			cfg.LLM.RateLimits[provider] = limits
		}
	}

	if cfg.Exec.Shell == "" {
		cfg.Exec.Shell = "sh"
	}
	if cfg.Exec.Timeout == 0 {
		cfg.Exec.Timeout = 10 * time.Minute
	}

	if cfg.Evaluation.Strategy == "" {
		cfg.Evaluation.Strategy = StrategyJudge
	}

	if cfg.History.Path == "" {
		cfg.History.Path = ProjectConfigDir + "/" + DefaultHistoryDB
	}
	if cfg.Debug.LogDir == "" {
		cfg.Debug.LogDir = ProjectConfigDir + "/" + DefaultLogDir
	}
}

// Validate checks the configuration for values no run could succeed with.
func (c *Config) Validate() error {
	for kind, model := range c.Models.ByKind() {
		if _, err := GetModelProvider(model); err != nil {
			return fmt.Errorf("models.%s: %w", strings.ReplaceAll(kind, "-", "_"), err)
		}
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %.2f", c.LLM.Temperature)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm.timeout must not be negative")
	}
	for provider, limits := range c.LLM.RateLimits {
		if limits.RequestsPerMinute < 0 || limits.Burst < 0 {
			return fmt.Errorf("llm.rate_limits.%s: values must not be negative", provider)
		}
	}
	if c.Exec.Timeout < 0 {
		return fmt.Errorf("exec.timeout must not be negative")
	}

	if c.Evaluation.JudgeMaxTokens < 0 {
		return fmt.Errorf("evaluation.judge_max_tokens must not be negative")
	}

	switch c.Evaluation.Strategy {
	case StrategyJudge, StrategySmoke:
	case StrategyPattern:
		if c.Evaluation.SuccessPattern == "" && c.Evaluation.FailurePattern == "" {
			return fmt.Errorf("evaluation.strategy %q requires success_pattern or failure_pattern", StrategyPattern)
		}
	default:
		return fmt.Errorf("evaluation.strategy must be one of %s, %s, %s; got %q",
			StrategyJudge, StrategySmoke, StrategyPattern, c.Evaluation.Strategy)
	}
	return nil
}

// ByKind returns the model configured for every synthesis kind.
func (m ModelsConfig) ByKind() map[string]string {
	return map[string]string{
		KindTestPlan:             m.TestPlan,
		KindDependencyExtraction: m.DependencyExtraction,
		KindTestCode:             m.TestCode,
		KindRefinement:           m.Refinement,
		KindJudgment:             m.Judgment,
	}
}

// ModelFor returns the model configured for kind, or "" for an unknown kind.
func (m ModelsConfig) ModelFor(kind string) string {
	return m.ByKind()[kind]
}

// ModelInfo contains metadata about a specific LLM model.
type ModelInfo struct {
	Provider         string  // API provider
	InputCPM         float64 // USD per million input tokens
	OutputCPM        float64 // USD per million output tokens
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels is the registry of models with pricing data.
//
//nolint:gochecknoglobals // Intentional global for model registry
var KnownModels = map[string]ModelInfo{
	"claude-sonnet-4-5": {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  64000,
	},
	"claude-opus-4-1": {
		Provider:         ProviderAnthropic,
		InputCPM:         15.0,
		OutputCPM:        75.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  32000,
	},
	"claude-3-5-sonnet-20241022": {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},

	"gpt-4o": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.5,
		OutputCPM:        10.0,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
	"gpt-4.1": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.0,
		OutputCPM:        8.0,
		MaxContextTokens: 1047576,
		MaxOutputTokens:  32768,
	},
	"gpt-4": {
		Provider:         ProviderOpenAI,
		InputCPM:         30.0,
		OutputCPM:        60.0,
		MaxContextTokens: 8192,
		MaxOutputTokens:  8192,
	},

	"gemini-2.5-pro": {
		Provider:         ProviderGoogle,
		InputCPM:         1.25,
		OutputCPM:        10.0,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
	"gemini-2.5-flash": {
		Provider:         ProviderGoogle,
		InputCPM:         0.30,
		OutputCPM:        2.50,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
	"gemini-1.5-pro": {
		Provider:         ProviderGoogle,
		InputCPM:         1.25,
		OutputCPM:        5.0,
		MaxContextTokens: 2097152,
		MaxOutputTokens:  8192,
	},
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
// Explicit prefixes come first so "compat:llama3" is not taken for an Ollama model.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{"compat:", ProviderOpenAICompat},
	{"ollama:", ProviderOllama},
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"codellama", ProviderOllama},
	{"deepseek", ProviderOllama},
	{"phi", ProviderOllama},
}

// GetModelProvider returns the API provider for a given model.
// First checks KnownModels, then tries pattern matching.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match", modelName)
}

// ProviderModelName strips an explicit routing prefix such as "ollama:" or "compat:".
func ProviderModelName(modelName string) string {
	for _, prefix := range []string{"compat:", "ollama:"} {
		if strings.HasPrefix(modelName, prefix) {
			return strings.TrimPrefix(modelName, prefix)
		}
	}
	return modelName
}

// GetModelInfo returns the ModelInfo for a given model name.
// Unknown models get an inferred provider and conservative limits.
func GetModelInfo(modelName string) (ModelInfo, bool) {
	if info, exists := KnownModels[modelName]; exists {
		return info, true
	}
	provider, _ := GetModelProvider(modelName)
	return ModelInfo{
		Provider:         provider,
		MaxContextTokens: 32000,
		MaxOutputTokens:  4096,
	}, false
}

// CalculateCost returns the USD cost of a call. Unknown models cost 0.
func CalculateCost(modelName string, promptTokens, completionTokens int) float64 {
	info, exists := KnownModels[modelName]
	if !exists {
		return 0
	}
	inputCost := (float64(promptTokens) / 1_000_000.0) * info.InputCPM
	outputCost := (float64(completionTokens) / 1_000_000.0) * info.OutputCPM
	return inputCost + outputCost
}

// GetAPIKey returns the API key for a given provider.
// Checks the decrypted secrets first, then environment variables.
// For Ollama it returns the host URL instead of a key; the OpenAI-compatible
// provider may run without a key.
func GetAPIKey(provider string) (string, error) {
	var envVars []string
	switch provider {
	case ProviderAnthropic:
		envVars = []string{EnvAnthropicAPIKey}
	case ProviderOpenAI:
		envVars = []string{EnvOpenAIAPIKey}
	case ProviderGoogle:
		envVars = []string{EnvGeminiAPIKey, EnvGoogleAPIKey}
	case ProviderOllama:
		if host, err := GetSecret(EnvOllamaHost); err == nil && host != "" {
			return host, nil
		}
		return defaultOllamaHost, nil
	case ProviderOpenAICompat:
		key, _ := GetSecret(EnvOpenAICompatAPIKey)
		return key, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	for _, envVar := range envVars {
		if key, err := GetSecret(envVar); err == nil && key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables",
		strings.Join(envVars, " or "))
}

// GetOpenAICompatBaseURL returns the base URL of the OpenAI-compatible endpoint.
func GetOpenAICompatBaseURL() (string, error) {
	url, err := GetSecret(EnvOpenAICompatURL)
	if err != nil || url == "" {
		return "", fmt.Errorf("%s must be set to use the %s provider", EnvOpenAICompatURL, ProviderOpenAICompat)
	}
	return url, nil
}

// LogInfo logs through the config component logger.
func LogInfo(format string, args ...any) {
	logx.NewLogger("config").Info(format, args...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
