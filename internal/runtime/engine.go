package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// EmitFunc receives every emission of a chain. Returning an error abandons the chain.
type EmitFunc = func(domain.Emission) error

// Engine is the reasoning-chain orchestrator. It holds only configuration, so one Engine
// can run any number of chains concurrently; every Run owns its own conversation,
// transcript and state.
type Engine struct {
	transport      ports.ChatCompleter
	retry          RetryPolicy
	stepCeiling    int
	maxTokens      int
	finalMaxTokens int
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
}

// NewEngine creates a new engine on top of a transport.
func NewEngine(transport ports.ChatCompleter, opts ...EngineOption) *Engine {
	e := &Engine{
		transport:      transport,
		retry:          DefaultRetryPolicy(),
		stepCeiling:    DefaultStepCeiling,
		maxTokens:      DefaultMaxTokens,
		finalMaxTokens: DefaultFinalMaxTokens,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.Logger = e.logger
	return e
}

// chainRun is the mutable state of one chain. It never outlives Run.
type chainRun struct {
	id           string
	conversation domain.Conversation
	transcript   domain.Transcript
	state        *domain.ChainState
	lastContent  *string
	logger       *slog.Logger
}

// Run drives one chain to completion, calling emit with the transcript after every
// accepted step (Total nil) and once more with the final answer and the total time.
// Transport and parse failures never surface here; Run only fails with ErrEmptyQuery,
// the context's error, or the error emit returned.
func (e *Engine) Run(ctx context.Context, chainID, query string, emit EmitFunc) (*domain.ChainState, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	c := &chainRun{
		id: chainID,
		conversation: domain.Conversation{}.
			Append(domain.RoleSystem, systemInstructions).
			Append(domain.RoleUser, query).
			Append(domain.RoleAssistant, assistantAcknowledgment),
		state:  domain.NewChainState(),
		logger: e.logger.With("chain_id", chainID),
	}

	c.logger.Info("chain started", "query_len", len(query))
	if e.hooks.OnChainStart != nil {
		e.hooks.OnChainStart(ctx, &domain.ChainEvent{
			EventBase: e.event(domain.EventChainStart, chainID),
			Status:    domain.StatusRunning,
		})
	}

	if err := e.stepLoop(ctx, c, emit); err != nil {
		return e.abandon(ctx, c, err)
	}
	if err := e.finalAnswer(ctx, c, emit); err != nil {
		return e.abandon(ctx, c, err)
	}

	c.logger.Info("chain finished",
		"status", c.state.Status,
		"steps", c.transcript.Steps(),
		"total", c.state.TotalElapsed)
	e.endHook(ctx, c)
	return c.state, nil
}

// stepLoop requests intermediate steps until a termination condition is met.
func (e *Engine) stepLoop(ctx context.Context, c *chainRun, emit EmitFunc) error {
	for c.state.Status == domain.StatusRunning {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, elapsed, err := e.request(ctx, c, e.maxTokens, false)
		if err != nil {
			return err
		}

		if c.lastContent != nil && *c.lastContent == rec.Content {
			c.logger.Warn("duplicate step detected, skipping to final answer", "step", c.state.StepCount)
			c.state.Status = domain.StatusTerminatedDuplicate
			break
		}

		c.transcript = append(c.transcript, domain.Entry{
			Title:   domain.StepTitle(c.state.StepCount, rec.Title),
			Content: ProcessContent(rec.Content),
			Elapsed: elapsed,
		})
		content := rec.Content
		c.lastContent = &content

		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		c.conversation = c.conversation.Append(domain.RoleAssistant, string(raw))

		if e.hooks.OnStepAccepted != nil {
			e.hooks.OnStepAccepted(ctx, &domain.StepEvent{
				EventBase: e.event(domain.EventStepAccepted, c.id),
				Number:    c.state.StepCount,
				Kind:      rec.Kind,
				Final:     rec.IsFinal(),
				Elapsed:   elapsed,
			})
		}

		if rec.IsFinal() {
			c.state.Status = domain.StatusTerminatedFinal
			break
		}

		c.state.StepCount++
		if c.state.StepCount > e.stepCeiling {
			c.logger.Warn("step ceiling reached, forcing final answer", "ceiling", e.stepCeiling)
			c.state.Status = domain.StatusTerminatedMaxSteps
			break
		}

		if err := emit(domain.Emission{ChainID: c.id, Transcript: c.transcript.Snapshot()}); err != nil {
			return err
		}
	}
	return nil
}

// finalAnswer asks for the answer, appends it and delivers the terminal emission.
func (e *Engine) finalAnswer(ctx context.Context, c *chainRun, emit EmitFunc) error {
	c.conversation = c.conversation.Append(domain.RoleUser, finalAnswerRequest)
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, elapsed, err := e.request(ctx, c, e.finalMaxTokens, true)
	if err != nil {
		return err
	}

	c.transcript = append(c.transcript, domain.Entry{
		Title:   domain.FinalAnswerTitle,
		Content: rec.Content,
		Elapsed: elapsed,
	})

	total := c.state.TotalElapsed
	return emit(domain.Emission{ChainID: c.id, Transcript: c.transcript.Snapshot(), Total: &total})
}

// request performs one logical request through the retry policy and accounts its time.
func (e *Engine) request(ctx context.Context, c *chainRun, maxTokens int, isFinal bool) (domain.StepRecord, time.Duration, error) {
	start := time.Now()
	rec, err := e.retry.Do(ctx, isFinal, func(ctx context.Context) (domain.StepRecord, error) {
		return e.attempt(ctx, c, maxTokens)
	}, func(attempt int, err error) {
		if e.hooks.OnAttemptFailed != nil {
			e.hooks.OnAttemptFailed(ctx, &domain.AttemptEvent{
				EventBase:   e.event(domain.EventAttemptFailed, c.id),
				Attempt:     attempt,
				MaxAttempts: e.retry.MaxAttempts,
				FinalAnswer: isFinal,
				Err:         err,
			})
		}
	})
	elapsed := time.Since(start)
	c.state.TotalElapsed += elapsed
	c.state.Requests++
	return rec, elapsed, err
}

func (e *Engine) attempt(ctx context.Context, c *chainRun, maxTokens int) (domain.StepRecord, error) {
	raw, err := e.transport.ChatComplete(ctx, c.conversation.Clone(), maxTokens)
	if err != nil {
		return domain.StepRecord{}, err
	}
	c.logger.Debug("model response", "raw", raw)

	rec := ValidateResponse(raw)
	if rec.Kind == domain.RecordRepaired {
		c.logger.Warn("malformed model response, keeping raw text", "len", len(raw))
		if e.hooks.OnStepMalformed != nil {
			e.hooks.OnStepMalformed(ctx, &domain.StepEvent{
				EventBase: e.event(domain.EventStepMalformed, c.id),
				Number:    c.state.StepCount,
				Kind:      rec.Kind,
			})
		}
	}
	return rec, nil
}

func (e *Engine) abandon(ctx context.Context, c *chainRun, err error) (*domain.ChainState, error) {
	c.state.Status = domain.StatusAbandoned
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Info("chain abandoned by consumer", "steps", c.transcript.Steps())
	} else {
		c.logger.Warn("chain abandoned", "steps", c.transcript.Steps(), "error", err)
	}
	e.endHook(context.WithoutCancel(ctx), c)
	return c.state, err
}

func (e *Engine) endHook(ctx context.Context, c *chainRun) {
	if e.hooks.OnChainEnd == nil {
		return
	}
	e.hooks.OnChainEnd(ctx, &domain.ChainEvent{
		EventBase: e.event(domain.EventChainEnd, c.id),
		Status:    c.state.Status,
		Steps:     c.transcript.Steps(),
		Elapsed:   c.state.TotalElapsed,
	})
}

func (e *Engine) event(t domain.EventType, chainID string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, ChainID: chainID}
}

// Stream runs a chain in its own goroutine and returns its emission sequence.
// The channel is unbuffered: the next model request is issued only after the consumer
// took the previous emission. Cancelling ctx abandons the chain and closes the channel.
func (e *Engine) Stream(ctx context.Context, chainID, query string) <-chan domain.Emission {
	out := make(chan domain.Emission)
	go func() {
		defer close(out)
		_, err := e.Run(ctx, chainID, query, func(em domain.Emission) error {
			select {
			case out <- em:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Debug("stream ended early", "chain_id", chainID, "error", err)
		}
	}()
	return out
}
