// Package sanitize cleans captured terminal output before it is shown to an agent or stored.
package sanitize

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// TruncationMarker is appended to stacks cut by TruncateStack.
const TruncationMarker = "\n... (truncated)"

// StripANSI removes ANSI escape sequences (colors, cursor movement, OSC links).
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// Clean strips escape sequences, normalizes line endings and trims surrounding whitespace.
func Clean(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// TruncateStack strips escape sequences and cuts the result to at most max bytes, followed
// by TruncationMarker. A non-positive max disables truncation. The cut never splits a
// UTF-8 sequence.
func TruncateStack(stack string, max int) string {
	s := ansi.Strip(stack)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
