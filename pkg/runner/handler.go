package runner

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents one emission of a chain. Emissions of a chain arrive in order;
	// each carries the full transcript so far.
	Output(ctx context.Context, em domain.Emission) error

	// Input reads the next query. It returns io.EOF when there are no more queries.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (e.g. "interrupted").
	// This is distinct from transcript rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms entry content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the runner to a terminal library.
type ContentRenderer func(string) (string, error)

// TitleStyler decorates entry titles, e.g. with terminal colors.
type TitleStyler func(title string, final bool) string
