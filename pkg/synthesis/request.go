// Package synthesis defines the content synthesis gateway: a request for one
// kind of generated text and the typed failure returned when it cannot be
// produced.
package synthesis

import (
	"context"
	"fmt"
)

// Kind identifies what a synthesis request asks for.
type Kind string

const (
	// KindTestPlan asks for the list of tests a production unit needs.
	KindTestPlan Kind = "test-plan"
	// KindDependencyExtraction asks for the classes a production unit depends on.
	KindDependencyExtraction Kind = "dependency-extraction"
	// KindTestCode asks for the full content of the test file.
	KindTestCode Kind = "test-code"
	// KindRefinement asks for an improved version of generated test code.
	KindRefinement Kind = "refinement"
	// KindJudgment asks whether test command output represents a success.
	KindJudgment Kind = "judgment"
)

// Kinds lists every kind in pipeline order.
var Kinds = []Kind{KindTestPlan, KindDependencyExtraction, KindTestCode, KindRefinement, KindJudgment} //nolint:gochecknoglobals

// ProducesCode reports whether the kind's output is source code.
func (k Kind) ProducesCode() bool {
	return k == KindTestCode || k == KindRefinement
}

// Section names a piece of text embedded in a request.
type Section string

// Sections understood by the prompt templates.
const (
	SectionProduction             Section = "production"
	SectionInstructions           Section = "instructions"
	SectionProjectContext         Section = "context"
	SectionDependencies           Section = "dependencies"
	SectionTestPlan               Section = "test-plan"
	SectionTestExamples           Section = "test-examples"
	SectionCurrentTest            Section = "current-test"
	SectionGeneratedTest          Section = "generated-test"
	SectionRefinementInstructions Section = "refinement-instructions"
	SectionTestOutput             Section = "test-output"
)

// Request is one synthesis call. It is built fresh per call and not modified
// after it is sent.
type Request struct {
	Kind     Kind
	Sections map[Section]string
}

// NewRequest builds a request owning a copy of sections.
func NewRequest(kind Kind, sections map[Section]string) Request {
	copied := make(map[Section]string, len(sections))
	for name, text := range sections {
		copied[name] = text
	}
	return Request{Kind: kind, Sections: copied}
}

// Section returns the text of a named section, or "".
func (r Request) Section(name Section) string {
	return r.Sections[name]
}

// Gateway produces generated text for a request. Implementations make
// exactly one attempt per call; they do not retry.
type Gateway interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (string, error)

// Synthesize calls f.
func (f GatewayFunc) Synthesize(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Error reports that a synthesis request could not be fulfilled. It covers
// transport, quota, auth, timeout and empty-response failures alike.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
