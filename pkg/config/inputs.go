package config

import (
	"fmt"
	"strings"
)

// Inputs are the fixed texts a run reads once before its first attempt.
type Inputs struct {
	ProductionContent      string
	ProjectContext         string
	TestExamples           string
	Instructions           string
	RefinementInstructions string
	// ExistingTestContent is the test file's content before the run, or ""
	// when the file does not exist yet.
	ExistingTestContent string
}

// FileReader is the subset of file access LoadInputs needs.
type FileReader interface {
	Read(path string) (string, error)
	Exists(path string) bool
}

// InputError lists every fixed input that could not be read or is empty.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "missing required inputs: " + strings.Join(e.Problems, "; ")
}

// LoadInputs reads the fixed inputs named by p. Every required input is
// checked before returning so the error reports all problems at once.
func LoadInputs(p *RunParams, files FileReader) (*Inputs, error) {
	in := &Inputs{Instructions: strings.TrimSpace(p.Instructions)}
	var problems []string

	read := func(flag, path string, dst *string) {
		if path == "" {
			problems = append(problems, fmt.Sprintf("--%s is not set", flag))
			return
		}
		content, err := files.Read(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("--%s: %v", flag, err))
			return
		}
		if strings.TrimSpace(content) == "" {
			problems = append(problems, fmt.Sprintf("--%s: %s is empty", flag, path))
			return
		}
		*dst = content
	}

	read("production", p.ProductionPath, &in.ProductionContent)
	read("context", p.ContextPath, &in.ProjectContext)
	read("testExample", p.TestExamplePath, &in.TestExamples)
	if p.WithRefinement() {
		read("refinement", p.RefinementPath, &in.RefinementInstructions)
	}
	if in.Instructions == "" {
		problems = append(problems, "--instructions is empty")
	}

	if p.TestPath != "" && files.Exists(p.TestPath) {
		content, err := files.Read(p.TestPath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("--test: %v", err))
		}
		in.ExistingTestContent = content
	}

	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}
	return in, nil
}
