package loop

import (
	"context"
	"time"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
)

// Outcome is how a run ended.
type Outcome string

// Run outcomes.
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// AttemptOutcome is how a single attempt ended.
type AttemptOutcome string

// Attempt outcomes.
const (
	AttemptSucceeded         AttemptOutcome = "success"
	AttemptGenerationFailed  AttemptOutcome = "generation_failed"
	AttemptTestsFailed       AttemptOutcome = "tests_failed"
	AttemptEvaluationFailed  AttemptOutcome = "evaluation_failed"
	AttemptCoverageRegressed AttemptOutcome = "coverage_not_increased"
	AttemptTargetNotMet      AttemptOutcome = "target_not_met"
)

// AttemptReport describes one finished attempt.
type AttemptReport struct {
	Index   int
	Outcome AttemptOutcome
	// Content is the candidate written by this attempt, empty when generation failed.
	Content string
	// Coverage is the measured coverage; zero unless the verdict passed.
	Coverage coverage.Percentage
	Measured bool
	Feedback string
	Duration time.Duration
}

// RunInfo describes a run once its baseline is known.
type RunInfo struct {
	RunID          string
	ProductionPath string
	TestPath       string
	UnitID         string
	Baseline       coverage.Percentage
	Options        Options
	Strategy       string
	StartedAt      time.Time
}

// Observer receives progress callbacks. Errors are logged and never change
// the run's outcome.
type Observer interface {
	OnStart(ctx context.Context, info RunInfo) error
	OnTransition(ctx context.Context, from, to State, state AttemptState) error
	OnAttempt(ctx context.Context, report AttemptReport) error
	OnFinish(ctx context.Context, result *Result) error
}

// NopObserver implements Observer with no-ops. Embed it to implement a subset.
type NopObserver struct{}

// OnStart implements Observer.
func (NopObserver) OnStart(context.Context, RunInfo) error { return nil }

// OnTransition implements Observer.
func (NopObserver) OnTransition(context.Context, State, State, AttemptState) error { return nil }

// OnAttempt implements Observer.
func (NopObserver) OnAttempt(context.Context, AttemptReport) error { return nil }

// OnFinish implements Observer.
func (NopObserver) OnFinish(context.Context, *Result) error { return nil }
