package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/evaluation"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/orchestrator"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/utils"
)

// Feedback prefixes folded into the next attempt's test content.
const (
	FeedbackOutputPrefix = "\n// Debug: "
	FeedbackErrorPrefix  = "\n// Debug Error: "
)

// AttemptState is the mutable state of one run. It is owned by the controller.
type AttemptState struct {
	AttemptIndex int
	// CurrentTestContent is the most recent candidate, which is also what
	// the test file holds once it has been written.
	CurrentTestContent string
	// FeedbackAnnotation describes why the previous attempt failed.
	FeedbackAnnotation string
	BaselineCoverage   coverage.Percentage
	Succeeded          bool
}

// WorkingContent is the text handed to the next generation: the current
// candidate followed by the feedback annotation.
func (s AttemptState) WorkingContent() string {
	return s.CurrentTestContent + s.FeedbackAnnotation
}

// Options parameterise the loop variants.
type Options struct {
	MaxAttempts    int
	TargetCoverage float64
	WithRefinement bool
}

// OptionsFromParams derives loop options from validated run parameters.
func OptionsFromParams(p *config.RunParams) Options {
	opts := Options{MaxAttempts: p.MaxAttempts, WithRefinement: p.WithRefinement()}
	if p.TargetCoverage != nil {
		opts.TargetCoverage = *p.TargetCoverage
	}
	return opts
}

// Files is the file access the controller needs.
type Files interface {
	config.FileReader
	Write(path, content string) error
}

// Runner runs the test command and returns its output. It never fails.
type Runner interface {
	Run(ctx context.Context, command string) string
}

// Measurer measures the unit's coverage from the current report.
type Measurer interface {
	Measure() (coverage.Percentage, error)
}

// GeneratorFactory builds the generator once the fixed inputs are loaded.
type GeneratorFactory func(inputs config.Inputs, withRefinement bool) orchestrator.Generator

// Deps are the collaborators of a Controller.
type Deps struct {
	Files        Files
	NewGenerator GeneratorFactory
	Runner       Runner
	Evaluator    evaluation.Strategy
	Coverage     Measurer
}

// Result is the outcome of a run.
type Result struct {
	RunID         string
	Outcome       Outcome
	FinalState    State
	State         AttemptState
	FinalCoverage coverage.Percentage
	Attempts      []AttemptReport
}

// Controller drives one run through the loop states.
type Controller struct {
	params    config.RunParams
	opts      Options
	deps      Deps
	observers []Observer
	logger    *logx.Logger

	current State
	state   AttemptState
}

// NewController creates a controller for validated run parameters.
func NewController(params *config.RunParams, deps Deps, observers ...Observer) *Controller {
	return &Controller{
		params:    *params,
		opts:      OptionsFromParams(params),
		deps:      deps,
		observers: observers,
		logger:    logx.NewLogger("loop"),
		current:   StateInit,
	}
}

// Options returns the controller's loop options.
func (c *Controller) Options() Options {
	return c.opts
}

// Run executes the loop until success, exhaustion, a fatal error or
// cancellation. The returned Result is never nil. The error is nil only on
// success; exhaustion wraps ErrExhausted and bad inputs are a *ConfigError.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	runID := logx.RunIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logx.WithRunID(ctx, runID)
	}
	res := &Result{RunID: runID}

	if c.opts.MaxAttempts <= 0 {
		return c.fail(ctx, res, &ConfigError{Err: fmt.Errorf("max attempts must be positive, got %d", c.opts.MaxAttempts)})
	}
	if c.opts.TargetCoverage < 0 || c.opts.TargetCoverage > 100 {
		return c.fail(ctx, res, &ConfigError{Err: fmt.Errorf("target coverage must be between 0 and 100, got %v", c.opts.TargetCoverage)})
	}

	inputs, err := config.LoadInputs(&c.params, c.deps.Files)
	if err != nil {
		return c.fail(ctx, res, &ConfigError{Err: err})
	}
	c.state.CurrentTestContent = inputs.ExistingTestContent

	if err := c.transition(ctx, StateBaseline); err != nil {
		return c.fail(ctx, res, err)
	}
	baseline, err := c.deps.Coverage.Measure()
	if err != nil {
		return c.fail(ctx, res, fmt.Errorf("failed to measure baseline coverage: %w", err))
	}
	c.state.BaselineCoverage = baseline
	res.FinalCoverage = baseline
	c.logger.Info("Initial coverage for %s: %s%%", c.params.ProductionPath, baseline)
	c.notifyStart(ctx, RunInfo{
		RunID:          runID,
		ProductionPath: c.params.ProductionPath,
		TestPath:       c.params.TestPath,
		UnitID:         coverage.UnitID(c.params.ProductionPath),
		Baseline:       baseline,
		Options:        c.opts,
		Strategy:       c.deps.Evaluator.Name(),
		StartedAt:      time.Now(),
	})

	generator := c.deps.NewGenerator(*inputs, c.opts.WithRefinement)

	for {
		if err := ctx.Err(); err != nil {
			return c.cancel(ctx, res, err)
		}
		if err := c.transition(ctx, StateGenerating); err != nil {
			return c.fail(ctx, res, err)
		}
		c.logger.Info("Attempt %d of %d...", c.state.AttemptIndex+1, c.opts.MaxAttempts)

		report, err := c.attempt(ctx, generator)
		if err != nil {
			if ctx.Err() != nil {
				return c.cancel(ctx, res, ctx.Err())
			}
			return c.fail(ctx, res, err)
		}
		res.Attempts = append(res.Attempts, report)
		if report.Measured {
			res.FinalCoverage = report.Coverage
		}
		c.notifyAttempt(ctx, report)

		if report.Outcome == AttemptSucceeded {
			c.state.Succeeded = true
			if err := c.transition(ctx, StateSuccess); err != nil {
				return c.fail(ctx, res, err)
			}
			c.logger.Info("Success! Target coverage of %v%% achieved with %s%%.", c.opts.TargetCoverage, report.Coverage)
			return c.finish(ctx, res, OutcomeSuccess, nil)
		}

		if err := c.transition(ctx, StateRetrying); err != nil {
			return c.fail(ctx, res, err)
		}
		c.state.AttemptIndex++
		if c.state.AttemptIndex == c.opts.MaxAttempts {
			if err := c.transition(ctx, StateExhausted); err != nil {
				return c.fail(ctx, res, err)
			}
			c.logger.Error("Max attempts reached. Test generation process failed.")
			return c.finish(ctx, res, OutcomeExhausted,
				fmt.Errorf("%w after %d attempts: %s", ErrExhausted, c.opts.MaxAttempts, lastFeedback(c.state.FeedbackAnnotation)))
		}
	}
}

// attempt runs one cycle from GENERATING up to its verdict. The returned
// error is fatal; retryable failures are reported through the feedback.
func (c *Controller) attempt(ctx context.Context, generator orchestrator.Generator) (AttemptReport, error) {
	start := time.Now()
	report := AttemptReport{Index: c.state.AttemptIndex}
	done := func(outcome AttemptOutcome, feedback string) (AttemptReport, error) {
		c.state.FeedbackAnnotation = feedback
		report.Outcome = outcome
		report.Feedback = feedback
		report.Duration = time.Since(start)
		return report, nil
	}

	candidate, err := generator.Generate(ctx, c.state.WorkingContent())
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		c.logger.Warn("Generation failed: %v", err)
		feedback := FeedbackErrorPrefix + err.Error()
		// The content is unchanged, so feedback about it still applies.
		annotation := c.state.FeedbackAnnotation + feedback
		report, err = done(AttemptGenerationFailed, feedback)
		c.state.FeedbackAnnotation = annotation
		return report, err
	}

	if err := c.transition(ctx, StateWriting); err != nil {
		return report, err
	}
	c.state.CurrentTestContent = candidate.Content
	report.Content = candidate.Content
	if err := c.deps.Files.Write(c.params.TestPath, candidate.Content); err != nil {
		return report, fmt.Errorf("failed to write test file: %w", err)
	}
	c.logger.Info("Test file written to %s", c.params.TestPath)

	if err := c.transition(ctx, StateExecuting); err != nil {
		return report, err
	}
	c.logger.Info("Running test command...")
	output := c.deps.Runner.Run(ctx, c.params.TestCommand)
	logx.Debug(ctx, "loop", "test command output:\n%s", output)

	if err := c.transition(ctx, StateEvaluating); err != nil {
		return report, err
	}
	verdict, err := c.deps.Evaluator.Evaluate(ctx, output)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		c.logger.Warn("Evaluation failed: %v", err)
		return done(AttemptEvaluationFailed, FeedbackErrorPrefix+"evaluation failed: "+err.Error())
	}
	if !verdict.Passed {
		if verdict.Reason != "" {
			c.logger.Warn("Test execution failed (%s). Using output for next attempt.", verdict.Reason)
		} else {
			c.logger.Warn("Test execution failed. Using output for next attempt.")
		}
		return done(AttemptTestsFailed, FeedbackOutputPrefix+output)
	}

	measured, err := c.deps.Coverage.Measure()
	if err != nil {
		return report, fmt.Errorf("failed to measure coverage: %w", err)
	}
	report.Coverage = measured
	report.Measured = true
	c.logger.Info("Coverage for %s: %s%% (baseline %s%%)", c.params.ProductionPath, measured, c.state.BaselineCoverage)

	if measured <= c.state.BaselineCoverage {
		return done(AttemptCoverageRegressed, FeedbackErrorPrefix+fmt.Sprintf(
			"Code coverage did not increase. Old: %s%%, New: %s%%.", c.state.BaselineCoverage, measured))
	}
	if float64(measured) < c.opts.TargetCoverage {
		return done(AttemptTargetNotMet, FeedbackErrorPrefix+fmt.Sprintf(
			"Target coverage of %v%% not achieved. Current coverage: %s%%.", c.opts.TargetCoverage, measured))
	}
	return done(AttemptSucceeded, "")
}

func (c *Controller) transition(ctx context.Context, to State) error {
	from := c.current
	if !IsValidTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	c.current = to
	logx.Debug(ctx, "loop", "%s -> %s (attempt %d)", from, to, c.state.AttemptIndex)
	for _, o := range c.observers {
		if err := o.OnTransition(ctx, from, to, c.state); err != nil {
			c.logger.Warn("observer failed on transition %s -> %s: %v", from, to, err)
		}
	}
	return nil
}

func (c *Controller) fail(ctx context.Context, res *Result, err error) (*Result, error) {
	var terr *TransitionError
	if !errors.As(err, &terr) && !IsTerminal(c.current) {
		_ = c.transition(ctx, StateError)
	}
	c.logger.Error("Run failed: %v", err)
	return c.finish(ctx, res, OutcomeFailed, err)
}

func (c *Controller) cancel(ctx context.Context, res *Result, cause error) (*Result, error) {
	if !IsTerminal(c.current) {
		_ = c.transition(ctx, StateCancelled)
	}
	c.logger.Warn("Run cancelled after %d attempts", len(res.Attempts))
	return c.finish(ctx, res, OutcomeCancelled, fmt.Errorf("run cancelled: %w", cause))
}

func (c *Controller) finish(ctx context.Context, res *Result, outcome Outcome, err error) (*Result, error) {
	res.Outcome = outcome
	res.FinalState = c.current
	res.State = c.state
	for _, o := range c.observers {
		// The run context may already be cancelled; observers still get to record the result.
		if oerr := o.OnFinish(context.WithoutCancel(ctx), res); oerr != nil {
			c.logger.Warn("observer failed on finish: %v", oerr)
		}
	}
	return res, err
}

func (c *Controller) notifyStart(ctx context.Context, info RunInfo) {
	for _, o := range c.observers {
		if err := o.OnStart(ctx, info); err != nil {
			c.logger.Warn("observer failed on start: %v", err)
		}
	}
}

func (c *Controller) notifyAttempt(ctx context.Context, report AttemptReport) {
	for _, o := range c.observers {
		if err := o.OnAttempt(ctx, report); err != nil {
			c.logger.Warn("observer failed on attempt %d: %v", report.Index, err)
		}
	}
}

func lastFeedback(feedback string) string {
	const limit = 500
	return utils.TruncateBytes(strings.TrimLeft(feedback, "\n "), limit)
}
