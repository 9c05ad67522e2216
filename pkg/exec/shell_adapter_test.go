package exec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeExecutor struct {
	result Result
	err    error
	got    []string
	opts   Opts
}

func (f *fakeExecutor) Run(_ context.Context, cmd []string, opts *Opts) (Result, error) {
	f.got = cmd
	f.opts = *opts
	return f.result, f.err
}

func (f *fakeExecutor) Name() string { return "fake" }

func TestShellAdapterRun(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		err    error
		want   string
	}{
		{"success combines streams", Result{Stdout: "  Tests run: 3, Failures: 0\n", Stderr: "warn"}, nil, "Tests run: 3, Failures: 0\nwarn"},
		{"success with stdout only", Result{Stdout: "ok\n"}, nil, "ok"},
		{"failure keeps stdout and stderr", Result{ExitCode: 1, Stdout: "Tests run: 3, Failures: 1", Stderr: " WARNING: deprecated JVM flag \n"}, nil, "Tests run: 3, Failures: 1\nWARNING: deprecated JVM flag"},
		{"failure with stderr only", Result{ExitCode: 1, Stderr: " compilation failed \n"}, nil, "compilation failed"},
		{"failure with stdout only", Result{ExitCode: 1, Stdout: "Tests run: 3, Failures: 1"}, nil, "Tests run: 3, Failures: 1"},
		{"failure without output", Result{ExitCode: 2}, nil, "test command exited with status 2 and produced no output"},
		{"start error", Result{ExitCode: -1}, errors.New("failed to run sh: not found"), "failed to run sh: not found"},
		{"timeout keeps partial output", Result{Stdout: "partial", TimedOut: true}, errors.New("interrupted: context deadline exceeded"), "partial\ninterrupted: context deadline exceeded"},
		{"timeout keeps both streams", Result{Stdout: "Tests run: 1", Stderr: "warn", TimedOut: true}, errors.New("interrupted"), "Tests run: 1\nwarn\ninterrupted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExecutor{result: tt.result, err: tt.err}
			adapter := NewShellAdapter(fake, "", Opts{Timeout: time.Minute, WorkDir: "/tmp"})

			assert.Equal(t, tt.want, adapter.Run(context.Background(), "mvn test"))
			assert.Equal(t, []string{"sh", "-c", "mvn test"}, fake.got)
			assert.Equal(t, time.Minute, fake.opts.Timeout)
			assert.Equal(t, "/tmp", fake.opts.WorkDir)
		})
	}
}

func TestShellAdapterEmptyCommand(t *testing.T) {
	fake := &fakeExecutor{}
	adapter := NewShellAdapter(fake, "bash", Opts{})
	assert.Equal(t, "test command is empty", adapter.Run(context.Background(), "  "))
	assert.Nil(t, fake.got)
	assert.Same(t, fake, adapter.GetExecutor())
}

func TestShellAdapterWithLocalExec(t *testing.T) {
	adapter := NewShellAdapter(NewLocalExec(), "sh", Opts{Timeout: 10 * time.Second})

	assert.Equal(t, "hello", adapter.Run(context.Background(), "echo hello"))
	assert.Equal(t, "Tests run: 3, Failures: 1 CalcTest.add expected 3\nWARNING: deprecated JVM flag",
		adapter.Run(context.Background(), "echo 'Tests run: 3, Failures: 1 CalcTest.add expected 3'; echo 'WARNING: deprecated JVM flag' >&2; exit 1"))

	out := NewShellAdapter(NewLocalExec(), "sh", Opts{Timeout: 100 * time.Millisecond}).Run(context.Background(), "sleep 5")
	assert.True(t, strings.Contains(out, "deadline exceeded"), out)
}
