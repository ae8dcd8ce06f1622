package mcp

import (
	"fmt"
	"regexp"
	"strings"
)

// timestampPattern matches leading timestamps in various formats:
// - 2024-05-21T10:00:05.123Z
// - 2024-05-21 10:00:05,123
// - 2024-05-21T10:00:05+00:00
var timestampPattern = regexp.MustCompile(`^(\s*)\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.,]?\d*[Z]?([+-]\d{2}:?\d{2})?\s*`)

// stripTimestamps removes a leading timestamp, keeping indentation.
func stripTimestamps(line string) string {
	return timestampPattern.ReplaceAllString(line, "$1")
}

// hashPattern matches hex strings of 12+ characters (container IDs, git SHAs, etc.)
var hashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

// maskHashes replaces long hex strings with <HASH>.
func maskHashes(line string) string {
	return hashPattern.ReplaceAllString(line, "<HASH>")
}

// longPathPattern matches absolute paths with 3+ directories.
// Captures the filename (and optional line number) at the end.
var longPathPattern = regexp.MustCompile(`/(?:[^/\s"']+/){3,}([^/\s:"']+(?::\d+)?)`)

// compressPath shortens long file paths to .../filename.
func compressPath(line string) string {
	return longPathPattern.ReplaceAllString(line, ".../$1")
}

// minRepeat is the shortest run of identical lines worth collapsing.
const minRepeat = 3

// collapseRepeats folds runs of identical lines (recursive frames) into one line with a count.
func collapseRepeats(lines []string) []string {
	var out []string
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		if n := j - i; n >= minRepeat {
			out = append(out, fmt.Sprintf("%s  [repeated %d times]", lines[i], n))
		} else {
			out = append(out, lines[i:j]...)
		}
		i = j
	}
	return out
}

// CompressStack shrinks a stack trace for LLM consumption: timestamps are stripped, hashes
// masked, deep paths shortened and repeated frames folded. Line structure is kept.
func CompressStack(stack string) string {
	if stack == "" {
		return ""
	}
	lines := strings.Split(stack, "\n")
	for i, line := range lines {
		line = stripTimestamps(line)
		line = maskHashes(line)
		line = compressPath(line)
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(collapseRepeats(lines), "\n")
}
