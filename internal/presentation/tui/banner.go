package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tripwise banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Sky to sunset, top to bottom
	lines := []struct{ text, color string }{
		{"  _        _              _          ", "#38bdf8"},
		{" | |_ _ _ (_)_ ___ __ __ (_)___ ___  ", "#60a5fa"},
		{" |  _| '_|| | '_ \\ V  V /| (_-</ -_) ", "#818cf8"},
		{"  \\__|_|  |_| .__/\\_/\\_/ |_/__/\\___| ", "#c084fc"},
		{"            |_|                      ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status formats a one-line progress message, e.g. "✔ flights (2.1s)".
func Status(w io.Writer, ok bool, msg string) {
	out := termenv.NewOutput(w)
	mark := out.String("✔").Foreground(out.Color("#22c55e"))
	if !ok {
		mark = out.String("✘").Foreground(out.Color("#ef4444"))
	}
	fmt.Fprintf(w, "%s %s\n", mark, msg)
}
