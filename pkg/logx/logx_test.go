package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger sets up a logger with a bytes.Buffer for testing.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logWriterLock.Lock()
	logWriter = &buf
	logWriterLock.Unlock()
	t.Cleanup(func() {
		logWriterLock.Lock()
		logWriter = nil
		logWriterLock.Unlock()
	})
	return &buf
}

func withDebug(t *testing.T, enabled bool, domains []string) {
	t.Helper()
	SetDebugConfig(enabled)
	SetDebugDomains(domains)
	t.Cleanup(func() {
		SetDebugConfig(false)
		SetDebugDomains(nil)
	})
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	logger := NewLogger("loop")
	logger.Info("Attempt %d of %d", 1, 3)

	output := buf.String()
	assert.Contains(t, output, "[loop]")
	assert.Contains(t, output, "INFO")
	assert.Contains(t, output, "Attempt 1 of 3")
	assert.True(t, strings.HasPrefix(output, "["))
	assert.Contains(t, output, "Z]")
}

func TestLogLevels(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, true, nil)

	logger := NewLogger("gateway")
	tests := []struct {
		logFunc  func(string, ...any)
		expected Level
	}{
		{logger.Debug, LevelDebug},
		{logger.Info, LevelInfo},
		{logger.Warn, LevelWarn},
		{logger.Error, LevelError},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc("message")
		assert.Contains(t, buf.String(), string(tt.expected))
	}
}

func TestDebugDisabledByDefault(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, false, nil)

	NewLogger("loop").Debug("hidden")
	Debug(context.Background(), "loop", "hidden too")

	assert.Empty(t, buf.String())
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := setupTestLogger(t)
	withDebug(t, true, []string{"orchestrator"})

	ctx := WithRunID(context.Background(), "run-42")
	Debug(ctx, "orchestrator", "step %s", "test-plan")
	Debug(ctx, "loop", "filtered out")

	output := buf.String()
	assert.Contains(t, output, "[run-42]")
	assert.Contains(t, output, "[orchestrator] step test-plan")
	assert.NotContains(t, output, "filtered out")
	assert.True(t, IsDebugEnabledForDomain("orchestrator"))
	assert.False(t, IsDebugEnabledForDomain("loop"))
}

func TestRunIDFrom(t *testing.T) {
	assert.Equal(t, "", RunIDFrom(context.Background()))
	assert.Equal(t, "abc", RunIDFrom(WithRunID(context.Background(), "abc")))
}

func TestWrap(t *testing.T) {
	buf := setupTestLogger(t)

	assert.NoError(t, Wrap(nil, "nothing"))

	base := errors.New("disk full")
	err := Wrap(base, "write test file")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "write test file: disk full", err.Error())
	assert.Contains(t, buf.String(), "ERROR: write test file: disk full")
}

func TestErrorf(t *testing.T) {
	buf := setupTestLogger(t)

	base := errors.New("boom")
	err := Errorf("baseline: %w", base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, buf.String(), "baseline: boom")
}

func TestInitializeLogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitializeLogFile(dir, false))

	NewLogger("cli").Info("to file")
	require.NoError(t, CloseLogFile())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[cli] INFO: to file")

	// Closing twice is harmless.
	assert.NoError(t, CloseLogFile())
}
