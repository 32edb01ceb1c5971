package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/stepwise/pkg/runner"
)

const defaultWrap = 80

// NewRenderer returns a function that renders markdown using glamour.
// Wrapping follows the terminal width when stdout is a terminal.
func NewRenderer() (runner.ContentRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(wrapWidth(os.Stdout)),
	)
	if err != nil {
		return nil, err
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func wrapWidth(f *os.File) int {
	if !IsTerminal(f) {
		return defaultWrap
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 8 {
		return defaultWrap
	}
	return width - 4
}
