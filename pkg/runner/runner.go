package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// ErrInterrupted is returned by Ask when the chain was interrupted by the user.
var ErrInterrupted = errors.New("interrupted")

// Runner handles the presentation loop of reasoning chains using provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler on stdin/stdout is used.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Headless suppresses system messages.
	Headless bool

	// InterruptSource, if set, replaces OS signals.
	InterruptSource <-chan struct{}

	newID func() string
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ask runs one chain for query and presents every emission.
// An interrupt abandons the chain and returns ErrInterrupted.
func (r *Runner) Ask(ctx context.Context, reasoner ports.Reasoner, query string) error {
	handler := r.resolveHandler()

	clean, err := SanitizeInput(query)
	if err != nil {
		return err
	}

	chainCtx, stop := r.interruptible(ctx)
	defer stop()

	chainID := r.newID()
	r.Logger.Debug("runner: chain starting", "chain_id", chainID)

	state, err := reasoner.Run(chainCtx, chainID, clean, func(em domain.Emission) error {
		return handler.Output(chainCtx, em)
	})
	if err != nil {
		if chainCtx.Err() != nil && ctx.Err() == nil {
			r.system(ctx, handler, "Interrupted.")
			return ErrInterrupted
		}
		return err
	}

	r.Logger.Debug("runner: chain finished", "chain_id", chainID, "status", state.Status)
	return nil
}

// Loop reads queries from the handler and answers each until input ends,
// the user types "exit" or "quit", or ctx is cancelled.
// Interrupting a chain returns to the prompt; interrupting the prompt ends the loop.
func (r *Runner) Loop(ctx context.Context, reasoner ports.Reasoner) error {
	handler := r.resolveHandler()

	for {
		inputCtx, stop := r.interruptible(ctx)
		query, err := handler.Input(inputCtx)
		interrupted := inputCtx.Err() != nil
		stop()

		if err != nil {
			if errors.Is(err, io.EOF) || interrupted {
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}
		if query == "exit" || query == "quit" {
			r.system(ctx, handler, "Bye!")
			return nil
		}

		err = r.Ask(ctx, reasoner, query)
		switch {
		case err == nil, errors.Is(err, ErrInterrupted):
		case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
			r.system(ctx, handler, err.Error())
		default:
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// interruptible derives a context cancelled by the interrupt source or OS signals.
func (r *Runner) interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	if r.InterruptSource == nil {
		signals := NewSignalManager(parent)
		return signals.Context(), signals.Stop
	}

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-r.InterruptSource:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (r *Runner) system(ctx context.Context, handler IOHandler, msg string) {
	if r.Headless {
		return
	}
	if err := handler.SystemOutput(ctx, msg); err != nil {
		r.Logger.Debug("runner: system output failed", "error", err)
	}
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		// Memoize so the input pump is created once.
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}
