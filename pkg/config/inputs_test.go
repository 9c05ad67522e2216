package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFiles map[string]string

func (m mapFiles) Read(path string) (string, error) {
	content, ok := m[path]
	if !ok {
		return "", fmt.Errorf("failed to read %s: no such file", path)
	}
	return content, nil
}

func (m mapFiles) Exists(path string) bool {
	_, ok := m[path]
	return ok
}

func inputFiles() mapFiles {
	return mapFiles{
		"src/Calc.java":  "class Calc {}",
		"context.txt":    "Calc uses Adder",
		"examples.txt":   "class ExampleTest {}",
		"refine.txt":     "Prefer parameterized tests",
		"test/Calc.java": "class CalcTest {}",
	}
}

func TestLoadInputs(t *testing.T) {
	p := validParams()
	p.TestPath = "test/Calc.java"
	require.NoError(t, p.Validate())

	in, err := LoadInputs(p, inputFiles())
	require.NoError(t, err)
	assert.Equal(t, "class Calc {}", in.ProductionContent)
	assert.Equal(t, "Calc uses Adder", in.ProjectContext)
	assert.Equal(t, "class ExampleTest {}", in.TestExamples)
	assert.Equal(t, DefaultInstructions, in.Instructions)
	assert.Equal(t, "class CalcTest {}", in.ExistingTestContent)
	assert.Empty(t, in.RefinementInstructions)
}

func TestLoadInputsMissingTestFileStartsEmpty(t *testing.T) {
	p := validParams()
	p.TestPath = "test/New.java"
	require.NoError(t, p.Validate())

	in, err := LoadInputs(p, inputFiles())
	require.NoError(t, err)
	assert.Empty(t, in.ExistingTestContent)
}

func TestLoadInputsRefinement(t *testing.T) {
	p := validParams()
	p.RefinementPath = "refine.txt"
	require.NoError(t, p.Validate())

	in, err := LoadInputs(p, inputFiles())
	require.NoError(t, err)
	assert.Equal(t, "Prefer parameterized tests", in.RefinementInstructions)
}

func TestLoadInputsReportsEveryProblem(t *testing.T) {
	files := inputFiles()
	files["context.txt"] = "   \n"
	delete(files, "examples.txt")

	p := validParams()
	p.RefinementPath = "missing-refine.txt"
	p.Instructions = " "

	_, err := LoadInputs(p, files)
	require.Error(t, err)

	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Len(t, inErr.Problems, 4)
	assert.Contains(t, err.Error(), "--context")
	assert.Contains(t, err.Error(), "--testExample")
	assert.Contains(t, err.Error(), "--refinement")
	assert.Contains(t, err.Error(), "--instructions")
}
