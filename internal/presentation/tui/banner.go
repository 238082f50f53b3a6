package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Arbor ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`     _         _               `, "#34d399"},
		{`    / \   _ __| |__   ___  _ __ `, "#10b981"},
		{`   / _ \ | '__| '_ \ / _ \| '__|`, "#059669"},
		{`  / ___ \| |  | |_) | (_) | |   `, "#047857"},
		{` /_/   \_\_|  |_.__/ \___/|_|   `, "#065f46"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
