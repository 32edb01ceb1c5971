package stepwise

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/stepwise/internal/runtime"
	"github.com/aretw0/stepwise/pkg/adapters/openai"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// Version is the release of the library and CLI.
var Version = "0.3.0"

// Engine is the high-level entry point of the library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime     *runtime.Engine
	transport   ports.ChatCompleter
	transportCfg *openai.Config
	runtimeOpts []runtime.EngineOption
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithTransport injects a custom chat-completion client, bypassing the default HTTP transport.
func WithTransport(t ports.ChatCompleter) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithTransportConfig configures the default OpenAI-compatible transport.
func WithTransportConfig(cfg openai.Config) Option {
	return func(e *Engine) {
		e.transportCfg = &cfg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStepCeiling overrides the maximum number of intermediate steps (default 10).
func WithStepCeiling(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithStepCeiling(n))
	}
}

// WithRetry overrides the attempts per request (default 3) and the delay between them (default 1s).
func WithRetry(attempts int, delay time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxAttempts(attempts), runtime.WithRetryDelay(delay))
	}
}

// WithMaxTokens overrides the token budgets of intermediate and final requests (default 4000 each).
func WithMaxTokens(step, final int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxTokens(step, final))
	}
}

// New initializes a new Engine.
// Without WithTransport it builds the OpenAI-compatible transport from WithTransportConfig.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if eng.transport == nil {
		if eng.transportCfg == nil {
			return nil, fmt.Errorf("no transport: %w", domain.ErrMissingAPIKey)
		}
		client, err := openai.New(*eng.transportCfg, openai.WithLogger(eng.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize transport: %w", err)
		}
		eng.transport = client
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.transport, runtimeOpts...)

	return eng, nil
}

var _ ports.Reasoner = (*Engine)(nil)

// Stream starts a chain with a fresh ID and returns its emissions.
// Every emission carries the full transcript so far; the last one has a non-nil Total.
// Cancelling ctx abandons the chain and closes the channel.
func (e *Engine) Stream(ctx context.Context, query string) <-chan domain.Emission {
	return e.runtime.Stream(ctx, uuid.NewString(), query)
}

// Run drives one chain under the caller's ID, calling emit for every emission.
func (e *Engine) Run(ctx context.Context, chainID, query string, emit func(domain.Emission) error) (*domain.ChainState, error) {
	return e.runtime.Run(ctx, chainID, query, emit)
}

// Ask runs a chain to completion and returns its terminal emission.
func (e *Engine) Ask(ctx context.Context, query string) (domain.Emission, error) {
	var last domain.Emission
	_, err := e.runtime.Run(ctx, uuid.NewString(), query, func(em domain.Emission) error {
		last = em
		return nil
	})
	if err != nil {
		return domain.Emission{}, err
	}
	return last, nil
}
