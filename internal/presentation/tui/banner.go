package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"      _                       _          ", "#818cf8"},
	{"  ___| |_ ___ _ ____      __ (_)___  ___ ", "#a78bfa"},
	{" / __| __/ _ \\ '_ \\ \\ /\\ / / | / __|/ _ \\", "#c084fc"},
	{" \\__ \\ ||  __/ |_) \\ V  V /  | \\__ \\  __/", "#e879f9"},
	{" |___/\\__\\___| .__/ \\_/\\_/   |_|___/\\___|", "#f472b6"},
	{"             |_|                          ", "#fb7185"},
}

// PrintBanner writes the ASCII art banner for stepwise to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
