// Package patterns normalizes error messages for two purposes:
//   - MaskRecurrence: aggressive masking so that the same failure with different values
//     (line numbers, addresses, ids, quoted input) groups under one fingerprint
//   - MaskPresentation: light cleanup for display in the viewer and MCP responses
package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaskingLevel controls how aggressively a message is normalized.
type MaskingLevel int

const (
	// MaskPresentation keeps line numbers and literal values.
	// Example: /home/dev/app/internal/db/pool.go:42 → .../pool.go:42
	MaskPresentation MaskingLevel = iota

	// MaskRecurrence masks everything that varies between occurrences.
	// Example: index out of range [5] with length 3 → index out of range [[NUM]] with length [NUM]
	MaskRecurrence
)

var (
	// 2026-03-01T12:00:05.123Z, 2026-03-01 12:00:05,123
	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}([.,]\d+)?(Z|[+-]\d{2}:?\d{2})?`)

	uuidPattern = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

	// 0xc000012345, +0x1d
	hexAddressPattern = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b`)

	// Object ids and git SHAs: 12+ lowercase hex chars.
	longHashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

	numberPattern = regexp.MustCompile(`\b\d+\b`)

	// Absolute paths with at least three directories; the file name and line are captured.
	longPathPattern = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:'"]+(?::\d+)?)`)

	// 'abc' or "abc" as printed by Python, Ruby and Java for offending input.
	quotedPattern = regexp.MustCompile(`'[^']*'|"[^"]*"`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize applies the transforms of the given level to a single line.
func Normalize(line string, level MaskingLevel) string {
	switch level {
	case MaskPresentation:
		line = stripLeadingTimestamp(line)
		line = uuidPattern.ReplaceAllString(line, "<UUID>")
		line = hexAddressPattern.ReplaceAllString(line, "<HEX>")
		line = longPathPattern.ReplaceAllString(line, ".../$1")
		line = longHashPattern.ReplaceAllString(line, "<HASH>")
	case MaskRecurrence:
		line = timestampPattern.ReplaceAllString(line, "[TIMESTAMP]")
		line = uuidPattern.ReplaceAllString(line, "[UUID]")
		line = hexAddressPattern.ReplaceAllString(line, "[HEX]")
		line = quotedPattern.ReplaceAllString(line, "[STR]")
		line = longPathPattern.ReplaceAllString(line, "[PATH]")
		line = longHashPattern.ReplaceAllString(line, "<HASH>")
		line = numberPattern.ReplaceAllString(line, "[NUM]")
	}

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

// Fingerprint returns a stable identifier for every occurrence of the same failure:
// the hex sha256 of the message normalized at MaskRecurrence.
func Fingerprint(message string) string {
	sum := sha256.Sum256([]byte(Normalize(message, MaskRecurrence)))
	return hex.EncodeToString(sum[:])
}

// Summarize returns the first line of a message at presentation level, cut to max runes.
func Summarize(message string, max int) string {
	first, _, _ := strings.Cut(message, "\n")
	s := Normalize(first, MaskPresentation)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// stripLeadingTimestamp drops a timestamp that prefixes the line, as loggers do.
func stripLeadingTimestamp(line string) string {
	if loc := timestampPattern.FindStringIndex(line); loc != nil && loc[0] < 5 {
		return strings.TrimSpace(line[loc[1]:])
	}
	return line
}
