package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStageEnd(ctx, &domain.StageEvent{Stage: "flights", Duration: time.Second})
	hooks.OnStageEnd(ctx, &domain.StageEvent{Stage: "flights", Err: errors.New("boom")})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "search_flights"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "search_flights", IsError: true})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "search_flights"})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Duration: time.Minute})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("search_flights", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("search_flights", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(observability.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(observability.OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tripwise_stage_duration_seconds")
	assert.Contains(t, names, "tripwise_tool_calls_total")
	assert.Contains(t, names, "tripwise_runs_total")
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnRunEnd(context.Background(), &domain.RunEvent{})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(observability.OutcomeOK)))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnStageStart(ctx, &domain.StageEvent{EventBase: domain.EventBase{RunID: "r1"}, Stage: "coordinator"})
	hooks.OnStageEnd(ctx, &domain.StageEvent{Stage: "coordinator", Err: errors.New("model down")})
	hooks.OnToolCall(ctx, &domain.ToolEvent{Stage: "flights", ToolName: "search_flights"})

	out := buf.String()
	assert.Contains(t, out, "stage_start")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "model down")
	assert.Contains(t, out, "tool=search_flights")
}
