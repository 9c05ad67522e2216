package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/llm"
	llmmetrics "github.com/asouza/anonther-ai-based-test-generator-tool/pkg/agent/middleware/metrics"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/synthesis"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

// GatewayFactory builds the synthesis gateway for the kinds a run needs.
type GatewayFactory func(cfg *config.Config, recorder llmmetrics.Recorder, kinds []synthesis.Kind) (synthesis.Gateway, error)

// app carries the global flags and the seams tests replace.
type app struct {
	projectDir string
	configPath string
	debug      bool
	logFile    bool

	newGateway   GatewayFactory
	readPassword func(prompt string) (string, error)
}

func newApp() *app {
	return &app{
		newGateway:   newLLMGateway,
		readPassword: promptPassword,
	}
}

// usageError marks command-line mistakes, which exit with exitConfigError.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func execute(ctx context.Context, a *app, args []string) int {
	return executeWithOutput(ctx, a, args, os.Stdout, os.Stderr)
}

func executeWithOutput(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := logx.CloseLogFile(); closeErr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", closeErr)
	}
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var (
		usageErr  *usageError
		paramsErr *config.ValidationError
		inputErr  *config.InputError
		loopErr   *loop.ConfigError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr), errors.As(err, &paramsErr), errors.As(err, &inputErr), errors.As(err, &loopErr):
		return exitConfigError
	default:
		return exitFailure
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "testgen",
		Short:         "Generate unit tests until a coverage target is reached",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.projectDir, "projectdir", ".", "Project directory; relative paths are resolved against it")
	flags.StringVar(&a.configPath, "config", "", "Config file (default: testgen.yaml, .yml or .toml in the project directory)")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&a.logFile, "log-file", false, "Also write logs to a file under the project's log directory")

	root.AddCommand(
		newRunCmd(a),
		newRefineCmd(a),
		newCoverageCmd(a),
		newHistoryCmd(a),
		newUsageCmd(a),
		newSecretsCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	abs, err := filepath.Abs(a.projectDir)
	if err != nil {
		return usageErrorf("invalid --projectdir: %v", err)
	}
	a.projectDir = abs
	if a.debug {
		logx.SetDebugConfig(true)
	}
	return nil
}

// loadConfig loads --config, or searches the project directory.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if a.configPath != "" {
		path = a.resolve(a.configPath)
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.LoadFromDir(a.projectDir)
	}
	if err != nil {
		return nil, &usageError{err: err}
	}
	if path != "" {
		config.LogInfo("Loaded config from %s", path)
	}

	if cfg.Debug.Enabled {
		logx.SetDebugConfig(true)
		logx.SetDebugDomains(cfg.Debug.Domains)
	}
	if a.logFile {
		if err := logx.InitializeLogFile(a.resolve(cfg.Debug.LogDir), true); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (a *app) resolve(path string) string {
	return config.ResolvePath(a.projectDir, path)
}

// unlockSecrets loads the encrypted secrets file when the project has one.
func (a *app) unlockSecrets() error {
	if !config.SecretsFileExists(a.projectDir) {
		return nil
	}
	password, err := a.password(false)
	if err != nil {
		return err
	}
	if err := config.LoadSecrets(a.projectDir, password); err != nil {
		return fmt.Errorf("failed to unlock secrets: %w", err)
	}
	return nil
}

// newLLMGateway creates provider clients for kinds and routes them through an LLMGateway.
func newLLMGateway(cfg *config.Config, recorder llmmetrics.Recorder, kinds []synthesis.Kind) (synthesis.Gateway, error) {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}

	clients, err := agent.NewLLMClientFactory(cfg, recorder).CreateClients(names...)
	if err != nil {
		return nil, err
	}
	byKind := make(map[synthesis.Kind]llm.LLMClient, len(clients))
	for _, kind := range kinds {
		byKind[kind] = clients[string(kind)]
	}
	gateway, err := synthesis.NewLLMGateway(byKind, nil, synthesis.GatewayOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return gateway, nil
}
