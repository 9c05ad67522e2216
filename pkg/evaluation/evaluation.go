// Package evaluation decides whether the output of a test command represents
// a passing run. Strategies are independent of the loop's state machine.
package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/synthesis"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/utils"
)

// Verdict is the result of evaluating test command output.
type Verdict struct {
	Passed bool
	// Reason is a short explanation, e.g. the judge's raw answer.
	Reason string
}

// Strategy judges test command output.
type Strategy interface {
	Evaluate(ctx context.Context, output string) (Verdict, error)
	Name() string
}

// JudgeStrategy asks a model whether the output is a success.
type JudgeStrategy struct {
	gateway   synthesis.Gateway
	maxTokens int
	counter   *utils.TokenCounter
}

// NewJudgeStrategy creates a strategy that sends judgment requests through
// gateway. A positive maxTokens keeps only the tail of longer outputs.
func NewJudgeStrategy(gateway synthesis.Gateway, maxTokens int) *JudgeStrategy {
	s := &JudgeStrategy{gateway: gateway, maxTokens: maxTokens}
	if maxTokens > 0 {
		// A nil counter falls back to a character estimate.
		s.counter, _ = utils.NewTokenCounter(config.DefaultJudgmentModel)
	}
	return s
}

// Name implements Strategy.
func (s *JudgeStrategy) Name() string { return config.StrategyJudge }

// Evaluate sends the output for judgment. The answer passes only when it is
// exactly "success" after trimming, lower-casing and dropping trailing
// punctuation. A gateway failure is returned as an error.
func (s *JudgeStrategy) Evaluate(ctx context.Context, output string) (Verdict, error) {
	if s.maxTokens > 0 {
		output = s.counter.TruncateToTokenLimit(output, s.maxTokens)
	}
	answer, err := s.gateway.Synthesize(ctx, synthesis.NewRequest(synthesis.KindJudgment, map[synthesis.Section]string{
		synthesis.SectionTestOutput: output,
	}))
	if err != nil {
		return Verdict{}, err
	}
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(answer)), `."'`)
	return Verdict{Passed: normalized == "success", Reason: normalized}, nil
}

// SmokeStrategy passes every output. It lets the loop be exercised without a
// judge; coverage checks still apply.
type SmokeStrategy struct{}

// NewSmokeStrategy creates a smoke strategy.
func NewSmokeStrategy() SmokeStrategy { return SmokeStrategy{} }

// Name implements Strategy.
func (SmokeStrategy) Name() string { return config.StrategySmoke }

// Evaluate always passes.
func (SmokeStrategy) Evaluate(context.Context, string) (Verdict, error) {
	return Verdict{Passed: true, Reason: "smoke mode"}, nil
}

// PatternStrategy judges output with regular expressions. A failure match
// always fails; otherwise a success pattern, when set, must match.
type PatternStrategy struct {
	success *regexp.Regexp
	failure *regexp.Regexp
}

// NewPatternStrategy compiles the patterns. At least one must be non-empty.
func NewPatternStrategy(successPattern, failurePattern string) (*PatternStrategy, error) {
	if successPattern == "" && failurePattern == "" {
		return nil, fmt.Errorf("pattern strategy requires a success or failure pattern")
	}
	s := &PatternStrategy{}
	var err error
	if successPattern != "" {
		if s.success, err = regexp.Compile(successPattern); err != nil {
			return nil, fmt.Errorf("invalid success pattern: %w", err)
		}
	}
	if failurePattern != "" {
		if s.failure, err = regexp.Compile(failurePattern); err != nil {
			return nil, fmt.Errorf("invalid failure pattern: %w", err)
		}
	}
	return s, nil
}

// Name implements Strategy.
func (s *PatternStrategy) Name() string { return config.StrategyPattern }

// Evaluate implements Strategy.
func (s *PatternStrategy) Evaluate(_ context.Context, output string) (Verdict, error) {
	if s.failure != nil {
		if m := s.failure.FindString(output); m != "" {
			return Verdict{Reason: fmt.Sprintf("failure pattern matched %q", m)}, nil
		}
	}
	if s.success != nil {
		if !s.success.MatchString(output) {
			return Verdict{Reason: "success pattern not found"}, nil
		}
		return Verdict{Passed: true, Reason: "success pattern matched"}, nil
	}
	return Verdict{Passed: true, Reason: "failure pattern not found"}, nil
}

// New builds the strategy selected by cfg. gateway is only used by the
// judge strategy.
func New(cfg config.EvaluationConfig, gateway synthesis.Gateway) (Strategy, error) {
	switch cfg.Strategy {
	case config.StrategyJudge, "":
		if gateway == nil {
			return nil, fmt.Errorf("judge strategy requires a synthesis gateway")
		}
		return NewJudgeStrategy(gateway, cfg.JudgeMaxTokens), nil
	case config.StrategySmoke:
		return NewSmokeStrategy(), nil
	case config.StrategyPattern:
		return NewPatternStrategy(cfg.SuccessPattern, cfg.FailurePattern)
	default:
		return nil, fmt.Errorf("unknown evaluation strategy %q", cfg.Strategy)
	}
}
