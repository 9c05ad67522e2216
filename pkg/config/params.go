package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Defaults for optional run parameters.
const (
	DefaultInstructions = "Write automated tests"
	DefaultMaxAttempts  = 1
)

// RunParams are the invocation parameters of one generation run.
// The flag tag names the CLI flag a field comes from.
type RunParams struct {
	ProductionPath  string   `flag:"production" validate:"required"`
	TestPath        string   `flag:"test" validate:"required"`
	ContextPath     string   `flag:"context" validate:"required"`
	TestExamplePath string   `flag:"testExample" validate:"required"`
	Instructions    string   `flag:"instructions" validate:"required"`
	RefinementPath  string   `flag:"refinement"`
	TestCommand     string   `flag:"command" validate:"required"`
	CoveragePath    string   `flag:"coverage" validate:"required"`
	TargetCoverage  *float64 `flag:"targetCoverage" validate:"required,gte=0,lte=100"`
	MaxAttempts     int      `flag:"attempts" validate:"gt=0"`
}

// WithRefinement reports whether a refinement step was requested.
func (p *RunParams) WithRefinement() bool {
	return p.RefinementPath != ""
}

// ValidationError lists every parameter that is missing or out of range.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required parameters: --"+strings.Join(e.Missing, ", --"))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid parameters: "+strings.Join(e.Invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

func newParamsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("flag"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate applies defaults for optional parameters and checks the rest.
func (p *RunParams) Validate() error {
	if p.Instructions == "" {
		p.Instructions = DefaultInstructions
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	err := newParamsValidator().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate parameters: %w", err)
	}

	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
			continue
		}
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("--%s must satisfy %s=%s, got %v",
			fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	sort.Strings(verr.Missing)
	return verr
}
