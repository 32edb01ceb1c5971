package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = &domain.TransportError{StatusCode: 502, Message: "bad gateway"}

func TestRetryPolicy_SucceedsAfterFailure(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0
	var observed []int

	rec, err := policy.Do(context.Background(), false, func(ctx context.Context) (domain.StepRecord, error) {
		calls++
		if calls == 1 {
			return domain.StepRecord{}, errBoom
		}
		return domain.StepRecord{Title: "ok", Content: "fine", NextAction: domain.ActionContinue}, nil
	}, func(attempt int, err error) {
		observed = append(observed, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Title)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, observed)
}

func TestRetryPolicy_Exhaustion(t *testing.T) {
	delay := 10 * time.Millisecond
	policy := RetryPolicy{MaxAttempts: 3, Delay: delay}

	t.Run("Intermediate", func(t *testing.T) {
		calls := 0
		start := time.Now()
		rec, err := policy.Do(context.Background(), false, func(ctx context.Context) (domain.StepRecord, error) {
			calls++
			return domain.StepRecord{}, errBoom
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.GreaterOrEqual(t, time.Since(start), 2*delay, "delay is applied between attempts")
		assert.Equal(t, domain.RecordTransportFailure, rec.Kind)
		assert.Equal(t, domain.ActionContinue, rec.NextAction)
		assert.Contains(t, rec.Content, "after 3 attempts")
		assert.Contains(t, rec.Content, "bad gateway")
	})

	t.Run("Final", func(t *testing.T) {
		rec, err := policy.Do(context.Background(), true, func(ctx context.Context) (domain.StepRecord, error) {
			return domain.StepRecord{}, errBoom
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, domain.ActionFinalAnswer, rec.NextAction)
		assert.Contains(t, rec.Content, "final answer after 3 attempts")
	})
}

func TestRetryPolicy_CancelDuringDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := policy.Do(ctx, false, func(ctx context.Context) (domain.StepRecord, error) {
			return domain.StepRecord{}, errBoom
		}, nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("retry sleep was not interrupted by cancellation")
	}
}

func TestRetryPolicy_DefaultsWhenUnset(t *testing.T) {
	calls := 0
	_, err := RetryPolicy{}.Do(context.Background(), false, func(ctx context.Context) (domain.StepRecord, error) {
		calls++
		return domain.StepRecord{}, errBoom
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, calls)
}
