package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Budgets of a chain.
const (
	DefaultMaxTokens      = 4000
	DefaultFinalMaxTokens = 4000
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = time.Second
	DefaultStepCeiling    = 10
)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithMaxAttempts overrides the number of transport attempts per logical request.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.retry.MaxAttempts = n
		}
	}
}

// WithRetryDelay overrides the fixed delay between attempts.
func WithRetryDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.retry.Delay = d
		}
	}
}

// WithStepCeiling overrides the maximum number of intermediate steps.
func WithStepCeiling(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.stepCeiling = n
		}
	}
}

// WithMaxTokens overrides the token budgets of intermediate and final requests.
func WithMaxTokens(step, final int) EngineOption {
	return func(e *Engine) {
		if step > 0 {
			e.maxTokens = step
		}
		if final > 0 {
			e.finalMaxTokens = final
		}
	}
}
