package detect

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Before Rust 1.73: thread 'main' panicked at 'boom', src/main.rs:2:5
	rustQuotedPattern = regexp.MustCompile(`^thread '(.+)' panicked at '(.+)'`)
	// Rust 1.73+: thread 'main' panicked at src/main.rs:2:5:
	rustUnquotedPattern = regexp.MustCompile(`^thread '(.+)' panicked at (.+)`)

	rustFramePattern = regexp.MustCompile(`^\s+\d+:`)
	rustAtPattern    = regexp.MustCompile(`^\s+at `)
)

// RustDetector recognizes Rust thread panics and RUST_BACKTRACE output.
type RustDetector struct{}

func (RustDetector) Language() string { return Rust }

func (RustDetector) IsErrorStart(line string) bool {
	return strings.HasPrefix(line, "thread '") && strings.Contains(line, "panicked at")
}

func (RustDetector) IsContinuation(line string, _ []string) bool {
	return rustFramePattern.MatchString(line) ||
		strings.HasPrefix(line, "note:") ||
		strings.HasPrefix(line, "stack backtrace:") ||
		rustAtPattern.MatchString(line)
}

func (RustDetector) Parse(lines []string) NormalizedError {
	first := firstLine(lines)
	errorType := "panic"
	message := ""

	if m := rustQuotedPattern.FindStringSubmatch(first); m != nil {
		errorType = fmt.Sprintf("panic[thread '%s']", m[1])
		message = m[2]
	} else if m := rustUnquotedPattern.FindStringSubmatch(first); m != nil {
		errorType = fmt.Sprintf("panic[thread '%s']", m[1])
		message = m[2]
	}

	return newError(Rust, errorType, message, lines)
}
