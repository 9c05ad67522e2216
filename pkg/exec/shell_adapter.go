package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
)

// ShellAdapter runs a shell command string and reduces the outcome to text.
// It never fails: start errors, timeouts and non-zero exits all become the
// returned text so the caller can feed them to the next attempt.
type ShellAdapter struct {
	executor Executor
	shell    string
	opts     Opts
	logger   *logx.Logger
}

// NewShellAdapter creates an adapter that runs commands as `<shell> -c <command>`.
// An empty shell defaults to "sh".
func NewShellAdapter(executor Executor, shell string, opts Opts) *ShellAdapter {
	if shell == "" {
		shell = "sh"
	}
	return &ShellAdapter{
		executor: executor,
		shell:    shell,
		opts:     opts,
		logger:   logx.NewLogger("exec"),
	}
}

// Run executes command and returns its combined output: trimmed stdout
// followed by trimmed stderr, skipping empty streams. A command that did not
// complete also reports the error; a failing command with no output reports
// its exit status.
func (a *ShellAdapter) Run(ctx context.Context, command string) string {
	if strings.TrimSpace(command) == "" {
		return "test command is empty"
	}

	a.logger.Info("Running test command: %s", command)
	opts := a.opts
	result, err := a.executor.Run(ctx, []string{a.shell, "-c", command}, &opts)
	output := combined(result)
	if err != nil {
		a.logger.Warn("Test command did not complete: %v", err)
		return joinNonEmpty(output, err.Error())
	}

	logx.Debug(ctx, "exec", "test command exited with %d after %s", result.ExitCode, result.Duration)
	if result.ExitCode == 0 {
		return output
	}

	a.logger.Warn("Test command exited with status %d", result.ExitCode)
	if output != "" {
		return output
	}
	return fmt.Sprintf("test command exited with status %d and produced no output", result.ExitCode)
}

// GetExecutor returns the underlying executor.
func (a *ShellAdapter) GetExecutor() Executor {
	return a.executor
}

// combined joins the trimmed output streams, stdout first.
func combined(result Result) string {
	return joinNonEmpty(strings.TrimSpace(result.Stdout), strings.TrimSpace(result.Stderr))
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
