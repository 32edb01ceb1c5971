package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventChainStart    EventType = "chain_start"
	EventStepAccepted  EventType = "step_accepted"
	EventStepMalformed EventType = "step_malformed"
	EventAttemptFailed EventType = "attempt_failed"
	EventChainEnd      EventType = "chain_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ChainID   string    `json:"chain_id,omitempty"`
}

// ChainEvent marks the start or end of a chain.
type ChainEvent struct {
	EventBase
	Status  ChainStatus   `json:"status,omitempty"`
	Steps   int           `json:"steps"`
	Elapsed time.Duration `json:"elapsed"`
}

// StepEvent reports a record obtained from the model.
type StepEvent struct {
	EventBase
	Number  int           `json:"number"`
	Kind    RecordKind    `json:"kind"`
	Final   bool          `json:"final"`
	Elapsed time.Duration `json:"elapsed"`
}

// AttemptEvent reports one failed transport attempt.
type AttemptEvent struct {
	EventBase
	Attempt     int   `json:"attempt"`
	MaxAttempts int   `json:"max_attempts"`
	FinalAnswer bool  `json:"final_answer"`
	Err         error `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any of them may be nil.
type LifecycleHooks struct {
	OnChainStart    func(context.Context, *ChainEvent)
	OnStepAccepted  func(context.Context, *StepEvent)
	OnStepMalformed func(context.Context, *StepEvent)
	OnAttemptFailed func(context.Context, *AttemptEvent)
	OnChainEnd      func(context.Context, *ChainEvent)
}

// Merge combines hooks so that both sets are called, h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnChainStart:    chain(h.OnChainStart, other.OnChainStart),
		OnStepAccepted:  chain(h.OnStepAccepted, other.OnStepAccepted),
		OnStepMalformed: chain(h.OnStepMalformed, other.OnStepMalformed),
		OnAttemptFailed: chain(h.OnAttemptFailed, other.OnAttemptFailed),
		OnChainEnd:      chain(h.OnChainEnd, other.OnChainEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
