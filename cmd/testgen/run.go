package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	llmmetrics "github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/evaluation"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/exec"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/orchestrator"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/persistence"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/synthesis"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/utils"
)

// runFlags are the flags shared by run and refine.
type runFlags struct {
	params         config.RunParams
	targetCoverage float64
	strategy       string
	noHistory      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.params.ProductionPath, "production", "", "Production source file to test")
	flags.StringVar(&f.params.TestPath, "test", "", "Test file to write (created when missing)")
	flags.StringVar(&f.params.ContextPath, "context", "", "File describing the project context")
	flags.StringVar(&f.params.TestExamplePath, "testExample", "", "File with example tests to imitate")
	flags.StringVar(&f.params.Instructions, "instructions", config.DefaultInstructions, "Testing instructions or coverage tactic")
	flags.StringVar(&f.params.RefinementPath, "refinement", "", "File with refinement instructions; enables the refinement step")
	flags.StringVar(&f.params.TestCommand, "command", "", "Shell command that runs the tests and regenerates the coverage report")
	flags.StringVar(&f.params.CoveragePath, "coverage", "", "Coverage report (JaCoCo CSV)")
	flags.Float64Var(&f.targetCoverage, "targetCoverage", 0, "Coverage percentage to reach (0-100)")
	flags.IntVar(&f.params.MaxAttempts, "attempts", config.DefaultMaxAttempts, "Maximum number of attempts")
	flags.StringVar(&f.strategy, "strategy", "", "Evaluation strategy: judge, smoke or pattern (overrides the config file)")
	flags.BoolVar(&f.noHistory, "no-history", false, "Do not record the run in the history database")
}

// resolvedParams returns the run parameters with paths resolved against the
// project directory. An unset --targetCoverage stays nil so validation reports it.
func (f *runFlags) resolvedParams(cmd *cobra.Command, a *app) *config.RunParams {
	p := f.params
	if cmd.Flags().Changed("targetCoverage") {
		target := f.targetCoverage
		p.TargetCoverage = &target
	}
	p.ProductionPath = a.resolve(p.ProductionPath)
	p.TestPath = a.resolve(p.TestPath)
	p.ContextPath = a.resolve(p.ContextPath)
	p.TestExamplePath = a.resolve(p.TestExamplePath)
	p.RefinementPath = a.resolve(p.RefinementPath)
	p.CoveragePath = a.resolve(p.CoveragePath)
	return &p
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate tests, run them and retry until the coverage target is met",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLoop(cmd, f.resolvedParams(cmd, a), f.strategy, f.noHistory)
		},
	}
	f.register(cmd)
	return cmd
}

func newRefineCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Generate and refine a test file in a single attempt",
		Long: `Generate a test file and pass it through the refinement step. Evaluation
uses the smoke strategy unless --strategy is given, so coverage alone decides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.params.RefinementPath == "" {
				return usageErrorf("refine requires --refinement")
			}
			strategy := f.strategy
			if strategy == "" {
				strategy = config.StrategySmoke
			}
			return a.runLoop(cmd, f.resolvedParams(cmd, a), strategy, f.noHistory)
		},
	}
	f.register(cmd)
	return cmd
}

// requiredKinds lists the synthesis kinds a run will request.
func requiredKinds(withRefinement bool, strategy string) []synthesis.Kind {
	kinds := []synthesis.Kind{synthesis.KindTestPlan, synthesis.KindDependencyExtraction, synthesis.KindTestCode}
	if withRefinement {
		kinds = append(kinds, synthesis.KindRefinement)
	}
	if strategy == config.StrategyJudge {
		kinds = append(kinds, synthesis.KindJudgment)
	}
	return kinds
}

func (a *app) runLoop(cmd *cobra.Command, params *config.RunParams, strategy string, noHistory bool) error {
	if err := params.Validate(); err != nil {
		return err
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if strategy != "" {
		cfg.Evaluation.Strategy = strategy
		if err := cfg.Validate(); err != nil {
			return &usageError{err: err}
		}
	}
	if err := a.unlockSecrets(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	usage := llmmetrics.NewUsageRecorder()
	recorder := llmmetrics.Multi(llmmetrics.NewPrometheusRecorder(reg), usage)

	gateway, err := a.newGateway(cfg, recorder, requiredKinds(params.WithRefinement(), cfg.Evaluation.Strategy))
	if err != nil {
		return &usageError{err: fmt.Errorf("failed to set up synthesis: %w", err)}
	}
	evaluator, err := evaluation.New(cfg.Evaluation, gateway)
	if err != nil {
		return &usageError{err: err}
	}

	execOpts := exec.DefaultExecOpts()
	execOpts.Timeout = cfg.Exec.Timeout
	execOpts.WorkDir = a.projectDir
	if cfg.Exec.WorkDir != "" {
		execOpts.WorkDir = a.resolve(cfg.Exec.WorkDir)
	}
	runner := exec.NewShellAdapter(exec.NewLocalExec(), cfg.Exec.Shell, execOpts)

	observers := []loop.Observer{metrics.NewLoopMetrics(reg)}
	if !noHistory && !cfg.History.Disabled {
		store, err := persistence.Open(a.resolve(cfg.History.Path))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		observers = append(observers, store)
	}

	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Listen(cfg.Metrics.Listen, reg)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	deps := loop.Deps{
		Files: utils.OSFiles{},
		NewGenerator: func(inputs config.Inputs, withRefinement bool) orchestrator.Generator {
			return orchestrator.New(gateway, inputs, withRefinement)
		},
		Runner:    runner,
		Evaluator: evaluator,
		Coverage:  coverage.NewAnalyzer(params.CoveragePath, params.ProductionPath),
	}

	ctx := logx.WithRunID(cmd.Context(), uuid.NewString())
	res, runErr := loop.NewController(params, deps, observers...).Run(ctx)
	printSummary(cmd.OutOrStdout(), res, usage)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(reg, a.resolve(cfg.Metrics.Textfile)); err != nil {
			logx.NewLogger("testgen").Warn("failed to write metrics textfile: %v", err)
		}
	}
	return runErr
}

func printSummary(w io.Writer, res *loop.Result, usage *llmmetrics.UsageRecorder) {
	fmt.Fprintf(w, "Run %s: %s\n", res.RunID, res.Outcome)
	fmt.Fprintf(w, "  attempts: %d\n", len(res.Attempts))
	fmt.Fprintf(w, "  coverage: %s%% -> %s%%\n", res.State.BaselineCoverage, res.FinalCoverage)
	for _, attempt := range res.Attempts {
		line := fmt.Sprintf("  #%d %s", attempt.Index+1, attempt.Outcome)
		if attempt.Measured {
			line += fmt.Sprintf(" (%s%%)", attempt.Coverage)
		}
		fmt.Fprintln(w, line)
	}

	totals := usage.Totals()
	if totals.RequestCount > 0 {
		fmt.Fprintf(w, "  llm: %d requests (%d failed), %d tokens, $%.4f\n",
			totals.RequestCount, totals.FailedCount, totals.TotalTokens, totals.TotalCost)
		for _, op := range usage.Snapshot() {
			fmt.Fprintf(w, "    %-22s %-20s %6d tokens  $%.4f\n", op.Operation, op.Model, op.TotalTokens, op.TotalCost)
		}
	}
	if res.Outcome == loop.OutcomeExhausted {
		fmt.Fprintf(w, "  last feedback: %s\n", oneLine(res.State.FeedbackAnnotation))
	}
}

// oneLine collapses feedback to a single trimmed line for the summary.
func oneLine(text string) string {
	const limit = 200
	return utils.TruncateBytes(strings.Join(strings.Fields(text), " "), limit)
}
