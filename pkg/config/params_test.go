package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func validParams() *RunParams {
	return &RunParams{
		ProductionPath:  "src/Calc.java",
		TestPath:        "test/CalcTest.java",
		ContextPath:     "context.txt",
		TestExamplePath: "examples.txt",
		TestCommand:     "mvn test jacoco:report",
		CoveragePath:    "target/site/jacoco/jacoco.csv",
		TargetCoverage:  floatPtr(80),
	}
}

func TestRunParamsDefaults(t *testing.T) {
	p := validParams()
	require.NoError(t, p.Validate())

	assert.Equal(t, DefaultInstructions, p.Instructions)
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.False(t, p.WithRefinement())

	p.RefinementPath = "refine.txt"
	assert.True(t, p.WithRefinement())
}

func TestRunParamsMissing(t *testing.T) {
	p := &RunParams{ProductionPath: "src/Calc.java"}

	err := p.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"command", "context", "coverage", "targetCoverage", "test", "testExample"}, verr.Missing)
	assert.Contains(t, err.Error(), "--targetCoverage")
}

func TestRunParamsRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunParams)
		wantErr bool
	}{
		{"zero target is allowed", func(p *RunParams) { p.TargetCoverage = floatPtr(0) }, false},
		{"full target is allowed", func(p *RunParams) { p.TargetCoverage = floatPtr(100) }, false},
		{"target above 100", func(p *RunParams) { p.TargetCoverage = floatPtr(100.5) }, true},
		{"negative target", func(p *RunParams) { p.TargetCoverage = floatPtr(-1) }, true},
		{"negative attempts", func(p *RunParams) { p.MaxAttempts = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(p)
			err := p.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Empty(t, verr.Missing)
			assert.NotEmpty(t, verr.Invalid)
		})
	}
}
