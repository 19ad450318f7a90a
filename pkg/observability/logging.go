package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tripwise/pkg/domain"
)

// LogHooks logs every lifecycle event at debug level, and failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "run_id", e.RunID, "pipeline", e.Pipeline)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "run_end", "run_id", e.RunID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "run_end", "run_id", e.RunID, "duration", e.Duration)
		},
		OnStageStart: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage_start", "run_id", e.RunID, "stage", e.Stage)
		},
		OnStageEnd: func(ctx context.Context, e *domain.StageEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "stage_end", "run_id", e.RunID, "stage", e.Stage, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "stage_end", "run_id", e.RunID, "stage", e.Stage, "output_key", e.OutputKey, "duration", e.Duration)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", "run_id", e.RunID, "stage", e.Stage, "tool", e.ToolName)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_return", "run_id", e.RunID, "stage", e.Stage, "tool", e.ToolName, "is_error", e.IsError, "duration", e.Duration)
		},
	}
}
