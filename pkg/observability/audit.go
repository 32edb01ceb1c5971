package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/stepwise/pkg/domain"
)

// AuditHooks logs every lifecycle event at debug level, and failures at warn.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnChainStart: func(ctx context.Context, e *domain.ChainEvent) {
			logger.DebugContext(ctx, "audit", "event", e.Type, "chain_id", e.ChainID)
		},
		OnStepAccepted: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "audit",
				"event", e.Type,
				"chain_id", e.ChainID,
				"step", stepLabel(e.Number),
				"kind", e.Kind.String(),
				"final", e.Final,
				"elapsed", e.Elapsed)
		},
		OnStepMalformed: func(ctx context.Context, e *domain.StepEvent) {
			logger.WarnContext(ctx, "audit", "event", e.Type, "chain_id", e.ChainID, "step", stepLabel(e.Number))
		},
		OnAttemptFailed: func(ctx context.Context, e *domain.AttemptEvent) {
			logger.WarnContext(ctx, "audit",
				"event", e.Type,
				"chain_id", e.ChainID,
				"attempt", e.Attempt,
				"max_attempts", e.MaxAttempts,
				"error", e.Err)
		},
		OnChainEnd: func(ctx context.Context, e *domain.ChainEvent) {
			logger.DebugContext(ctx, "audit",
				"event", e.Type,
				"chain_id", e.ChainID,
				"status", e.Status,
				"steps", e.Steps,
				"elapsed", e.Elapsed)
		},
	}
}
