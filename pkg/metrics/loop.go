// Package metrics exports loop progress as Prometheus metrics and reads
// LLM usage back from a Prometheus server.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
)

// LoopMetrics records loop progress. It implements loop.Observer.
type LoopMetrics struct {
	loop.NopObserver

	runsTotal        *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	attemptDuration  prometheus.Histogram
	transitionsTotal *prometheus.CounterVec
	baselineCoverage *prometheus.GaugeVec
	finalCoverage    *prometheus.GaugeVec
	targetCoverage   *prometheus.GaugeVec

	mu   sync.Mutex
	unit string
}

// NewLoopMetrics registers the loop metrics with reg. A nil reg uses the default registerer.
func NewLoopMetrics(reg prometheus.Registerer) *LoopMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &LoopMetrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testgen_runs_total",
				Help: "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testgen_attempts_total",
				Help: "Finished attempts by outcome",
			},
			[]string{"outcome"},
		),
		attemptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "testgen_attempt_duration_seconds",
				Help:    "Duration of one generate, write, execute and evaluate cycle",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "testgen_state_transitions_total",
				Help: "Loop state transitions by target state",
			},
			[]string{"state"},
		),
		baselineCoverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "testgen_baseline_coverage_percent",
				Help: "Instruction coverage of the unit before the first attempt",
			},
			[]string{"unit"},
		),
		finalCoverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "testgen_final_coverage_percent",
				Help: "Last measured instruction coverage of the unit",
			},
			[]string{"unit"},
		),
		targetCoverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "testgen_target_coverage_percent",
				Help: "Coverage the run is trying to reach",
			},
			[]string{"unit"},
		),
	}
}

// OnStart implements loop.Observer.
func (m *LoopMetrics) OnStart(_ context.Context, info loop.RunInfo) error {
	m.mu.Lock()
	m.unit = info.UnitID
	m.mu.Unlock()

	m.baselineCoverage.WithLabelValues(info.UnitID).Set(float64(info.Baseline))
	m.finalCoverage.WithLabelValues(info.UnitID).Set(float64(info.Baseline))
	m.targetCoverage.WithLabelValues(info.UnitID).Set(info.Options.TargetCoverage)
	return nil
}

// OnTransition implements loop.Observer.
func (m *LoopMetrics) OnTransition(_ context.Context, _, to loop.State, _ loop.AttemptState) error {
	m.transitionsTotal.WithLabelValues(string(to)).Inc()
	return nil
}

// OnAttempt implements loop.Observer.
func (m *LoopMetrics) OnAttempt(_ context.Context, report loop.AttemptReport) error {
	m.attemptsTotal.WithLabelValues(string(report.Outcome)).Inc()
	m.attemptDuration.Observe(report.Duration.Seconds())
	if report.Measured {
		m.finalCoverage.WithLabelValues(m.currentUnit()).Set(float64(report.Coverage))
	}
	return nil
}

// OnFinish implements loop.Observer.
func (m *LoopMetrics) OnFinish(_ context.Context, res *loop.Result) error {
	m.runsTotal.WithLabelValues(string(res.Outcome)).Inc()
	return nil
}

func (m *LoopMetrics) currentUnit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unit
}
