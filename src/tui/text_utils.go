package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"devsonar/src/sanitize"
)

// VisualWidth returns the number of terminal cells s occupies.
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate trims s and cuts it to maxLen cells, ending with "..." when ellipsis is set
// and there is room for it.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	switch {
	case maxLen <= 0:
		return ""
	case VisualWidth(s) <= maxLen:
		return s
	case ellipsis && maxLen > 3:
		return runewidth.Truncate(s, maxLen-3, "") + "..."
	default:
		return runewidth.Truncate(s, maxLen, "")
	}
}

// TruncateAndPad returns a cell of exactly width columns.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	return runewidth.FillRight(Truncate(s, width, ellipsis), width)
}

// Wrap word-wraps text to width cells. Runs of whitespace collapse to one space and
// words wider than width are split across lines.
func Wrap(text string, width int) string {
	words := strings.Fields(text)
	if width <= 0 || len(words) == 0 {
		return text
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0
	breakLine := func() {
		if curWidth > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curWidth = 0
		}
	}

	for _, word := range words {
		w := VisualWidth(word)
		if w > width {
			breakLine()
			pieces := splitWidth(word, width)
			lines = append(lines, pieces...)
			continue
		}
		if curWidth > 0 && curWidth+1+w > width {
			breakLine()
		}
		if curWidth > 0 {
			cur.WriteByte(' ')
			curWidth++
		}
		cur.WriteString(word)
		curWidth += w
	}
	breakLine()

	return strings.Join(lines, "\n")
}

// splitWidth cuts s into pieces no wider than width cells.
func splitWidth(s string, width int) []string {
	var pieces []string
	var cur strings.Builder
	curWidth := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if curWidth+rw > width && curWidth > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			curWidth = 0
		}
		cur.WriteRune(r)
		curWidth += rw
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

// SplitLines splits text by newlines. Empty text yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// CleanLogText strips terminal escape sequences and carriage returns from captured output.
func CleanLogText(s string) string {
	return strings.ReplaceAll(sanitize.StripANSI(s), "\r", "")
}

// WrapPreserveIndent wraps each line of text independently, keeping the
// leading whitespace of the source line on every continuation line.
// Used for stack traces, where indentation separates frames from locations.
func WrapPreserveIndent(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		body := strings.TrimLeft(line, " \t")
		if body == "" {
			out = append(out, "")
			continue
		}
		indent := strings.ReplaceAll(line[:len(line)-len(body)], "\t", "    ")
		if VisualWidth(indent) >= width/2 {
			indent = ""
		}
		for _, wrapped := range strings.Split(Wrap(body, width-VisualWidth(indent)), "\n") {
			out = append(out, indent+wrapped)
		}
	}
	return strings.Join(out, "\n")
}
