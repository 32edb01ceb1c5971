package tui

import (
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/stepwise/pkg/runner"
)

// NewTitleStyler highlights step titles for w. The final answer gets its own color
// so it stands out from the intermediate steps. On outputs without color support
// the title is returned as a markdown heading.
func NewTitleStyler(w io.Writer) runner.TitleStyler {
	out := termenv.NewOutput(w)
	return newTitleStyler(out)
}

func newTitleStyler(out *termenv.Output) runner.TitleStyler {
	if out.Profile == termenv.Ascii {
		return func(title string, final bool) string {
			return "### " + title
		}
	}
	step := out.Color("#a78bfa")
	answer := out.Color("#34d399")
	return func(title string, final bool) string {
		if final {
			return out.String(title).Bold().Underline().Foreground(answer).String()
		}
		return out.String(title).Bold().Foreground(step).String()
	}
}
