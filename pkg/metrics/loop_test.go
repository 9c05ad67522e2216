package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
)

func TestLoopMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLoopMetrics(reg)
	ctx := context.Background()

	require.NoError(t, m.OnStart(ctx, loop.RunInfo{UnitID: "Calc", Baseline: 40, Options: loop.Options{TargetCoverage: 80}}))
	require.NoError(t, m.OnTransition(ctx, loop.StateBaseline, loop.StateGenerating, loop.AttemptState{}))
	require.NoError(t, m.OnAttempt(ctx, loop.AttemptReport{Outcome: loop.AttemptTestsFailed, Duration: 10 * time.Second}))
	require.NoError(t, m.OnAttempt(ctx, loop.AttemptReport{Outcome: loop.AttemptSucceeded, Coverage: 85, Measured: true}))
	require.NoError(t, m.OnFinish(ctx, &loop.Result{Outcome: loop.OutcomeSuccess}))

	assert.InDelta(t, 40, testutil.ToFloat64(m.baselineCoverage.WithLabelValues("Calc")), 1e-9)
	assert.InDelta(t, 85, testutil.ToFloat64(m.finalCoverage.WithLabelValues("Calc")), 1e-9)
	assert.InDelta(t, 80, testutil.ToFloat64(m.targetCoverage.WithLabelValues("Calc")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("tests_failed")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("success")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("GENERATING")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("success")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.attemptDuration))
}

func TestLoopMetricsUnmeasuredAttemptKeepsCoverage(t *testing.T) {
	m := NewLoopMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	require.NoError(t, m.OnStart(ctx, loop.RunInfo{UnitID: "Calc", Baseline: 40}))
	require.NoError(t, m.OnAttempt(ctx, loop.AttemptReport{Outcome: loop.AttemptGenerationFailed}))
	assert.InDelta(t, 40, testutil.ToFloat64(m.finalCoverage.WithLabelValues("Calc")), 1e-9)
}
