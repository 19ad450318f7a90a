package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tripwise"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics records run, stage and tool measurements.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	ToolCalls     *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages, including their tool loop.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"stage", "outcome"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool executions requested by the model.",
		}, []string{"tool", "is_error"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of full pipeline runs.",
			Buckets:   []float64{5, 15, 30, 60, 120, 240},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.ToolCalls, m.ToolDuration, m.Runs, m.RunDuration)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(outcome(e.Err)).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
		},
		OnStageEnd: func(_ context.Context, e *domain.StageEvent) {
			m.StageDuration.WithLabelValues(e.Stage, outcome(e.Err)).Observe(e.Duration.Seconds())
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			m.ToolCalls.WithLabelValues(e.ToolName, strconv.FormatBool(e.IsError)).Inc()
			m.ToolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
