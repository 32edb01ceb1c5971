package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
)

const exhaustedTitle = "Error"

// AttemptFunc performs one transport call plus validation.
type AttemptFunc func(ctx context.Context) (domain.StepRecord, error)

// RetryPolicy wraps one logical request in a fixed number of attempts with a fixed delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      *slog.Logger
}

// DefaultRetryPolicy returns the 3 attempts / 1s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// Do calls fn until it succeeds or the attempts run out. After exhaustion it returns a
// synthetic record embedding the last error instead of failing. The only error it returns
// is the context's, when ctx ends during an attempt or the delay.
// observe, if not nil, is called after every failed attempt.
func (p RetryPolicy) Do(ctx context.Context, isFinal bool, fn AttemptFunc, observe func(attempt int, err error)) (domain.StepRecord, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec, err := fn(ctx)
		if err == nil {
			return rec, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.StepRecord{}, ctxErr
		}

		lastErr = err
		if p.Logger != nil {
			p.Logger.Error("model request failed",
				"attempt", fmt.Sprintf("%d/%d", attempt, maxAttempts),
				"final_answer", isFinal,
				"error", err)
		}
		if observe != nil {
			observe(attempt, err)
		}

		if attempt < maxAttempts {
			if err := sleep(ctx, p.Delay); err != nil {
				return domain.StepRecord{}, err
			}
		}
	}

	return exhaustedRecord(maxAttempts, lastErr, isFinal), nil
}

func exhaustedRecord(attempts int, err error, isFinal bool) domain.StepRecord {
	if isFinal {
		return domain.StepRecord{
			Title:      exhaustedTitle,
			Content:    fmt.Sprintf("Failed to generate final answer after %d attempts. Error: %v", attempts, err),
			NextAction: domain.ActionFinalAnswer,
			Kind:       domain.RecordTransportFailure,
		}
	}
	return domain.StepRecord{
		Title:      exhaustedTitle,
		Content:    fmt.Sprintf("Failed to generate step after %d attempts. Error: %v", attempts, err),
		NextAction: domain.ActionContinue,
		Kind:       domain.RecordTransportFailure,
	}
}

// sleep waits for d or until ctx ends, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
