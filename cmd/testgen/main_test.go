package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmmetrics "github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/synthesis"
)

const reportHeader = "CLASS,INSTRUCTION_MISSED,INSTRUCTION_COVERED\n"

// fakeSynthesis answers every kind with canned text and records the kinds requested.
type fakeSynthesis struct {
	kinds     []synthesis.Kind
	requested []synthesis.Kind
}

func (f *fakeSynthesis) factory(_ *config.Config, _ llmmetrics.Recorder, kinds []synthesis.Kind) (synthesis.Gateway, error) {
	f.kinds = kinds
	return synthesis.GatewayFunc(func(_ context.Context, req synthesis.Request) (string, error) {
		f.requested = append(f.requested, req.Kind)
		switch req.Kind {
		case synthesis.KindTestPlan:
			return "1. add() returns the sum", nil
		case synthesis.KindDependencyExtraction:
			return "none", nil
		case synthesis.KindJudgment:
			return "SUCCESS", nil
		default:
			return "class CalcTest { @Test void adds() {} }", nil
		}
	}), nil
}

type invocation struct {
	code   int
	stdout string
	stderr string
}

func invoke(t *testing.T, a *app, args ...string) invocation {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := executeWithOutput(context.Background(), a, args, &stdout, &stderr)
	return invocation{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func newTestApp(gw *fakeSynthesis) *app {
	return &app{
		newGateway: gw.factory,
		readPassword: func(string) (string, error) {
			return "", errors.New("no terminal in tests")
		},
	}
}

// project lays out a minimal project and returns its directory.
func project(t *testing.T, baselineCovered int) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"src/Calc.java": "class Calc { int add(int a, int b) { return a + b; } }",
		"context.txt":   "A calculator library.",
		"examples.txt":  "class ExampleTest {}",
		"refine.txt":    "Prefer AssertJ.",
		"report.csv":    reportHeader + reportRow(baselineCovered),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// reportRow is the Calc row of a report with covered out of 10 instructions covered.
func reportRow(covered int) string {
	return fmt.Sprintf("Calc,%d,%d\n", 10-covered, covered)
}

// writeReport is a shell command that rewrites the report.
func writeReport(covered int) string {
	return "printf '" + strings.ReplaceAll(reportHeader+reportRow(covered), "\n", `\n`) + "' > report.csv"
}

func runArgs(dir, command string, extra ...string) []string {
	args := []string{
		"run",
		"--projectdir", dir,
		"--production", "src/Calc.java",
		"--test", "test/CalcTest.java",
		"--context", "context.txt",
		"--testExample", "examples.txt",
		"--command", command,
		"--coverage", "report.csv",
		"--targetCoverage", "80",
		"--strategy", "smoke",
	}
	return append(args, extra...)
}

func TestRunReachesTarget(t *testing.T) {
	gw := &fakeSynthesis{}
	dir := project(t, 1)

	res := invoke(t, newTestApp(gw), runArgs(dir, writeReport(9))...)
	require.Equal(t, exitOK, res.code, res.stderr)

	assert.Contains(t, res.stdout, ": success")
	assert.Contains(t, res.stdout, "coverage: 10% -> 90%")
	assert.Contains(t, res.stdout, "#1 success (90%)")

	written, err := os.ReadFile(filepath.Join(dir, "test/CalcTest.java"))
	require.NoError(t, err)
	assert.Equal(t, "class CalcTest { @Test void adds() {} }", string(written))

	assert.Equal(t, []synthesis.Kind{synthesis.KindTestPlan, synthesis.KindDependencyExtraction, synthesis.KindTestCode}, gw.kinds)
	assert.NotContains(t, gw.requested, synthesis.KindJudgment)
}

func TestRunExhaustsAttempts(t *testing.T) {
	gw := &fakeSynthesis{}
	dir := project(t, 1)

	res := invoke(t, newTestApp(gw), runArgs(dir, writeReport(1), "--attempts", "2")...)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, ": exhausted")
	assert.Contains(t, res.stdout, "#2 coverage_not_increased (10%)")
	assert.Contains(t, res.stdout, "last feedback: // Debug Error: Code coverage did not increase. Old: 10%, New: 10%.")
	assert.Contains(t, res.stderr, "max attempts reached after 2 attempts")
}

func TestRunWithJudgeRequestsJudgment(t *testing.T) {
	gw := &fakeSynthesis{}
	dir := project(t, 1)

	args := runArgs(dir, writeReport(9))
	args[len(args)-1] = config.StrategyJudge
	res := invoke(t, newTestApp(gw), args...)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, gw.kinds, synthesis.KindJudgment)
	assert.Contains(t, gw.requested, synthesis.KindJudgment)
}

func TestRefineDefaultsToSmoke(t *testing.T) {
	gw := &fakeSynthesis{}
	dir := project(t, 1)

	res := invoke(t, newTestApp(gw),
		"refine",
		"--projectdir", dir,
		"--production", "src/Calc.java",
		"--test", "test/CalcTest.java",
		"--context", "context.txt",
		"--testExample", "examples.txt",
		"--refinement", "refine.txt",
		"--command", writeReport(9),
		"--coverage", "report.csv",
		"--targetCoverage", "80",
	)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, gw.requested, synthesis.KindRefinement)
	assert.NotContains(t, gw.kinds, synthesis.KindJudgment)
}

func TestUsageErrors(t *testing.T) {
	dir := project(t, 1)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing params", []string{"run", "--projectdir", dir, "--production", "src/Calc.java"}, "--targetCoverage"},
		{"unknown flag", []string{"run", "--bogus"}, "unknown flag"},
		{"refine without refinement", []string{"refine", "--projectdir", dir}, "--refinement"},
		{"unknown strategy", runArgs(dir, "true", "--strategy", "vibes"), "evaluation.strategy"},
		{"missing input file", []string{
			"run", "--projectdir", dir,
			"--production", "src/Missing.java",
			"--test", "test/CalcTest.java",
			"--context", "context.txt",
			"--testExample", "examples.txt",
			"--command", "true",
			"--coverage", "report.csv",
			"--targetCoverage", "80",
			"--strategy", "smoke",
		}, "missing required inputs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := invoke(t, newTestApp(&fakeSynthesis{}), tt.args...)
			assert.Equal(t, exitConfigError, res.code)
			assert.Contains(t, res.stderr, tt.want)
		})
	}
}

func TestHistoryListsRuns(t *testing.T) {
	dir := project(t, 1)
	res := invoke(t, newTestApp(&fakeSynthesis{}), runArgs(dir, writeReport(9))...)
	require.Equal(t, exitOK, res.code, res.stderr)

	runID := strings.TrimSuffix(strings.Fields(res.stdout)[1], ":")

	history := invoke(t, newTestApp(&fakeSynthesis{}), "history", "--projectdir", dir)
	require.Equal(t, exitOK, history.code, history.stderr)
	assert.Contains(t, history.stdout, runID)
	assert.Contains(t, history.stdout, "success")
	assert.Contains(t, history.stdout, "1/1")

	show := invoke(t, newTestApp(&fakeSynthesis{}), "history", "show", runID, "--projectdir", dir)
	require.Equal(t, exitOK, show.code, show.stderr)
	assert.Contains(t, show.stdout, "#1 success coverage=90%")

	missing := invoke(t, newTestApp(&fakeSynthesis{}), "history", "show", "nope", "--projectdir", dir)
	assert.Equal(t, exitFailure, missing.code)
}

func TestNoHistorySkipsDatabase(t *testing.T) {
	dir := project(t, 1)
	res := invoke(t, newTestApp(&fakeSynthesis{}), runArgs(dir, writeReport(9), "--no-history")...)
	require.Equal(t, exitOK, res.code, res.stderr)

	_, err := os.Stat(filepath.Join(dir, config.ProjectConfigDir, config.DefaultHistoryDB))
	assert.True(t, os.IsNotExist(err))
}

func TestCoverageCommand(t *testing.T) {
	dir := project(t, 9)

	res := invoke(t, newTestApp(&fakeSynthesis{}), "coverage", "--projectdir", dir, "--coverage", "report.csv", "--production", "src/Calc.java")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "Calc: 90%\n", res.stdout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("CLASS,INSTRUCTION_MISSED,INSTRUCTION_COVERED\nCalc,x,1\n"), 0644))
	res = invoke(t, newTestApp(&fakeSynthesis{}), "coverage", "--projectdir", dir, "--coverage", "bad.csv", "--production", "src/Calc.java")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "INSTRUCTION_MISSED")

	res = invoke(t, newTestApp(&fakeSynthesis{}), "coverage", "--projectdir", dir)
	assert.Equal(t, exitConfigError, res.code)
}

func TestSecretsCommands(t *testing.T) {
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })
	t.Setenv(config.EnvPassword, "hunter2")
	dir := t.TempDir()

	res := invoke(t, newTestApp(&fakeSynthesis{}), "secrets", "list", "--projectdir", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No secrets file.")

	res = invoke(t, newTestApp(&fakeSynthesis{}), "secrets", "set", config.EnvOpenAIAPIKey, "sk-test", "--projectdir", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	res = invoke(t, newTestApp(&fakeSynthesis{}), "secrets", "set", config.EnvAnthropicAPIKey, "sk-ant", "--projectdir", dir)
	require.Equal(t, exitOK, res.code, res.stderr)

	res = invoke(t, newTestApp(&fakeSynthesis{}), "secrets", "list", "--projectdir", dir)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, config.EnvAnthropicAPIKey+"\n"+config.EnvOpenAIAPIKey+"\n", res.stdout)

	secrets, err := config.DecryptSecretsFile(dir, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", secrets[config.EnvOpenAIAPIKey])
}

func TestPasswordPrompt(t *testing.T) {
	t.Setenv(config.EnvPassword, "")

	answers := []string{"a", "b", "c", "c"}
	a := &app{readPassword: func(string) (string, error) {
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}}
	pw, err := a.password(true)
	require.NoError(t, err)
	assert.Equal(t, "c", pw)

	a.readPassword = func(string) (string, error) { return "", nil }
	_, err = a.password(false)
	assert.Error(t, err)

	t.Setenv(config.EnvPassword, "from-env")
	pw, err = a.password(true)
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}

func TestVersionCommand(t *testing.T) {
	res := invoke(t, newTestApp(&fakeSynthesis{}), "version")
	require.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "testgen")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfigError, exitCode(usageErrorf("bad")))
	assert.Equal(t, exitConfigError, exitCode(&config.InputError{Problems: []string{"x"}}))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "// Debug: a b", oneLine("\n// Debug:  a\n b\n"))

	long := oneLine(strings.Repeat("ação ", 100))
	assert.True(t, utf8.ValidString(long))
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.LessOrEqual(t, len(long), 203)
}
