package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llmerrors"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/templates"
)

// System prompts per kind.
//
//nolint:gochecknoglobals
var personas = map[Kind]string{
	KindTestPlan:             "You are an expert in software testing.",
	KindDependencyExtraction: "You are an expert in software engineering.",
	KindTestCode:             "You are an expert in software testing. You write complete, compilable test files.",
	KindRefinement:           "You are an expert in software testing. You improve existing test files without dropping coverage.",
	KindJudgment:             "You are a highly skilled software testing assistant.",
}

//nolint:gochecknoglobals
var kindTemplates = map[Kind]templates.PromptTemplate{
	KindTestPlan:             templates.TestPlanTemplate,
	KindDependencyExtraction: templates.DependencyExtractionTemplate,
	KindTestCode:             templates.TestCodeTemplate,
	KindRefinement:           templates.RefinementTemplate,
	KindJudgment:             templates.JudgmentTemplate,
}

// GatewayOptions tunes the completion requests an LLMGateway sends.
type GatewayOptions struct {
	MaxTokens int
	// Temperature overrides the per-kind default when positive.
	Temperature float32
}

// LLMGateway implements Gateway on top of one llm.LLMClient per kind.
type LLMGateway struct {
	clients  map[Kind]llm.LLMClient
	renderer *templates.Renderer
	opts     GatewayOptions
	logger   *logx.Logger
}

// NewLLMGateway creates a gateway. clients must cover every kind the caller
// will request; a missing kind fails at Synthesize time.
func NewLLMGateway(clients map[Kind]llm.LLMClient, renderer *templates.Renderer, opts GatewayOptions) (*LLMGateway, error) {
	if renderer == nil {
		var err error
		if renderer, err = templates.NewRenderer(); err != nil {
			return nil, fmt.Errorf("failed to load prompt templates: %w", err)
		}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	copied := make(map[Kind]llm.LLMClient, len(clients))
	for kind, client := range clients {
		copied[kind] = client
	}
	return &LLMGateway{
		clients:  copied,
		renderer: renderer,
		opts:     opts,
		logger:   logx.NewLogger("synthesis"),
	}, nil
}

// Synthesize renders the prompt for req.Kind, sends one completion request
// and returns the trimmed text. Code kinds have a surrounding markdown fence
// removed. Every failure is returned as *Error.
func (g *LLMGateway) Synthesize(ctx context.Context, req Request) (string, error) {
	client, ok := g.clients[req.Kind]
	if !ok {
		return "", &Error{Kind: req.Kind, Err: fmt.Errorf("no model configured for %s", req.Kind)}
	}
	tmpl, ok := kindTemplates[req.Kind]
	if !ok {
		return "", &Error{Kind: req.Kind, Err: fmt.Errorf("unknown synthesis kind %q", req.Kind)}
	}

	prompt, err := g.renderer.Render(tmpl, templateData(req))
	if err != nil {
		return "", &Error{Kind: req.Kind, Err: err}
	}

	completion := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(personas[req.Kind]),
			llm.NewUserMessage(prompt),
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.temperature(req.Kind),
	}

	logx.Debug(ctx, "synthesis", "requesting %s from %s (%d prompt chars)", req.Kind, client.GetModelName(), len(prompt))
	resp, err := client.Complete(llm.WithOperation(ctx, string(req.Kind)), completion)
	if err != nil {
		g.logger.Warn("%s request to %s failed: %v", req.Kind, client.GetModelName(), err)
		return "", &Error{Kind: req.Kind, Err: err}
	}

	text := strings.TrimSpace(resp.Content)
	if req.Kind.ProducesCode() {
		text = StripCodeFence(text)
	}
	if text == "" {
		return "", &Error{
			Kind: req.Kind,
			Err:  llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, fmt.Sprintf("%s returned no usable content", client.GetModelName())),
		}
	}

	logx.Debug(ctx, "synthesis", "%s result:\n%s", req.Kind, text)
	return text, nil
}

func (g *LLMGateway) temperature(kind Kind) float32 {
	if g.opts.Temperature > 0 {
		return g.opts.Temperature
	}
	if kind.ProducesCode() {
		return llm.TemperatureDeterministic
	}
	return llm.TemperatureDefault
}

func templateData(req Request) *templates.TemplateData {
	return &templates.TemplateData{
		ProductionContent:      req.Section(SectionProduction),
		Instructions:           req.Section(SectionInstructions),
		ProjectContext:         req.Section(SectionProjectContext),
		DependencyDescription:  req.Section(SectionDependencies),
		TestPlan:               req.Section(SectionTestPlan),
		TestExamples:           req.Section(SectionTestExamples),
		CurrentTestContent:     req.Section(SectionCurrentTest),
		GeneratedTestContent:   req.Section(SectionGeneratedTest),
		RefinementInstructions: req.Section(SectionRefinementInstructions),
		TestOutput:             req.Section(SectionTestOutput),
	}
}

// StripCodeFence removes a markdown code fence wrapping the whole of text,
// including an optional language tag. Text without a surrounding fence is
// returned unchanged.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return text
	}
	body := strings.TrimSuffix(trimmed, "```")
	newline := strings.IndexByte(body, '\n')
	if newline < 0 {
		return text
	}
	if strings.Contains(body[3:newline], " ") || strings.Contains(body[newline+1:], "```") {
		return text
	}
	return strings.TrimSpace(body[newline+1:])
}
