// Package orchestrator runs the ordered synthesis steps that turn the fixed
// inputs and the current test content into a candidate test file.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/synthesis"
)

// Candidate is the output of one generation attempt.
type Candidate struct {
	// Content is the full test file to write.
	Content      string
	TestPlan     string
	Dependencies string
	// Refined reports whether Content came from the refinement step.
	Refined bool
}

// StepError reports the synthesis step that aborted an attempt.
type StepError struct {
	Step  synthesis.Kind
	Index int
	Total int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s): %v", e.Index, e.Total, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Generator produces a candidate from the current test content.
type Generator interface {
	Generate(ctx context.Context, currentTestContent string) (Candidate, error)
}

// Orchestrator sequences plan, dependency, code and optional refinement
// requests against a synthesis gateway.
type Orchestrator struct {
	gateway        synthesis.Gateway
	inputs         config.Inputs
	withRefinement bool
	logger         *logx.Logger
}

// New creates an orchestrator over fixed inputs.
func New(gateway synthesis.Gateway, inputs config.Inputs, withRefinement bool) *Orchestrator {
	return &Orchestrator{
		gateway:        gateway,
		inputs:         inputs,
		withRefinement: withRefinement,
		logger:         logx.NewLogger("orchestrator"),
	}
}

// Steps returns the kinds Generate requests, in order.
func (o *Orchestrator) Steps() []synthesis.Kind {
	steps := []synthesis.Kind{
		synthesis.KindTestPlan,
		synthesis.KindDependencyExtraction,
		synthesis.KindTestCode,
	}
	if o.withRefinement {
		steps = append(steps, synthesis.KindRefinement)
	}
	return steps
}

// Generate runs every step in order. Each step sees the previous steps'
// output; the first failure aborts the attempt.
func (o *Orchestrator) Generate(ctx context.Context, currentTestContent string) (Candidate, error) {
	steps := o.Steps()
	var candidate Candidate

	for i, kind := range steps {
		if err := ctx.Err(); err != nil {
			return Candidate{}, &StepError{Step: kind, Index: i + 1, Total: len(steps), Err: err}
		}

		req := synthesis.NewRequest(kind, o.sections(kind, currentTestContent, candidate))
		o.logger.Info("Generating %s (step %d/%d)", kind, i+1, len(steps))
		start := time.Now()
		text, err := o.gateway.Synthesize(ctx, req)
		if err != nil {
			return Candidate{}, &StepError{Step: kind, Index: i + 1, Total: len(steps), Err: err}
		}
		logx.Debug(ctx, "orchestrator", "%s took %s:\n%s", kind, time.Since(start).Round(time.Millisecond), text)

		switch kind {
		case synthesis.KindTestPlan:
			candidate.TestPlan = text
		case synthesis.KindDependencyExtraction:
			candidate.Dependencies = text
		case synthesis.KindTestCode:
			candidate.Content = text
		case synthesis.KindRefinement:
			candidate.Content = text
			candidate.Refined = true
		}
	}
	return candidate, nil
}

func (o *Orchestrator) sections(kind synthesis.Kind, currentTestContent string, sofar Candidate) map[synthesis.Section]string {
	switch kind {
	case synthesis.KindTestPlan:
		return map[synthesis.Section]string{
			synthesis.SectionProduction:   o.inputs.ProductionContent,
			synthesis.SectionInstructions: o.inputs.Instructions,
		}
	case synthesis.KindDependencyExtraction:
		return map[synthesis.Section]string{
			synthesis.SectionProjectContext: o.inputs.ProjectContext,
			synthesis.SectionProduction:     o.inputs.ProductionContent,
		}
	case synthesis.KindTestCode:
		return map[synthesis.Section]string{
			synthesis.SectionDependencies: sofar.Dependencies,
			synthesis.SectionTestPlan:     sofar.TestPlan,
			synthesis.SectionTestExamples: o.inputs.TestExamples,
			synthesis.SectionProduction:   o.inputs.ProductionContent,
			synthesis.SectionCurrentTest:  currentTestContent,
		}
	case synthesis.KindRefinement:
		return map[synthesis.Section]string{
			synthesis.SectionGeneratedTest:          sofar.Content,
			synthesis.SectionProduction:             o.inputs.ProductionContent,
			synthesis.SectionDependencies:           sofar.Dependencies,
			synthesis.SectionRefinementInstructions: o.inputs.RefinementInstructions,
		}
	default:
		return nil
	}
}
