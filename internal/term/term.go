// Package term decides whether output is colored and holds the few ANSI
// sequences the banner uses. Log lines are colored by hclog itself; this
// package only tells it whether to.
package term

import (
	"io"
	"os"
	"strings"

	"github.com/backmassage/sdr2hdr/internal/config"
)

// ANSI sequences. Empty when colors are disabled, so concatenation is a no-op.
var (
	Magenta = ""
	Cyan    = ""
	Bold    = ""
	NC      = "" // Reset sequence.
)

// Configure resolves mode against out and sets the package-level sequences.
// Call once during startup (from logging.NewLogger). It returns the result
// of [Enabled].
func Configure(mode config.ColorMode, out io.Writer) bool {
	if resolve(mode, out) {
		Magenta, Cyan, Bold, NC = "\033[1;95m", "\033[1;96m", "\033[1m", "\033[0m"
	} else {
		Magenta, Cyan, Bold, NC = "", "", "", ""
	}
	return Enabled()
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return NC != "" }

// resolve applies the mode. In auto mode colors need a terminal on out and
// are vetoed by NO_COLOR (https://no-color.org) or TERM=dumb; FORCE_COLOR
// turns them on for piped output such as CI logs.
func resolve(mode config.ColorMode, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	if v := os.Getenv("FORCE_COLOR"); v != "" && v != "0" {
		return true
	}
	return IsTerminal(out)
}

// IsTerminal reports whether w is a file attached to a character device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
