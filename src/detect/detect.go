// Package detect recognizes fatal error output of five language runtimes.
//
// Each Detector answers three questions about a stream of stderr lines:
//   - does this line start an error?
//   - does this line continue an error that has already started?
//   - given the accumulated lines, what is the normalized record?
//
// Detectors hold no state and are safe to share between classifiers.
package detect

import "strings"

// Language tags. The set is closed.
const (
	Python = "python"
	Go     = "go"
	Ruby   = "ruby"
	Java   = "java"
	Rust   = "rust"
)

// UnknownErrorType is used when a detector cannot extract a type from the segment.
const UnknownErrorType = "UnknownError"

// NormalizedError is the record a Detector extracts from a closed segment.
type NormalizedError struct {
	Language  string   `json:"language"`
	ErrorType string   `json:"error_type"`
	Message   string   `json:"message"`
	Stack     string   `json:"stack"`
	RawLines  []string `json:"raw_lines"`
}

// Detector provides start, continuation and extraction logic for one error convention.
type Detector interface {
	// Language returns the detector's language tag.
	Language() string
	// IsErrorStart reports whether line opens a new error segment.
	IsErrorStart(line string) bool
	// IsContinuation reports whether line belongs to the segment accumulated so far.
	IsContinuation(line string, linesSoFar []string) bool
	// Parse extracts the normalized record. It never fails; unmatched input degrades
	// to UnknownErrorType and an empty message.
	Parse(lines []string) NormalizedError
}

// All returns the detectors in priority order. The first whose IsErrorStart matches
// owns the segment.
func All() []Detector {
	return []Detector{
		PythonDetector{},
		GoDetector{},
		RubyDetector{},
		JavaDetector{},
		RustDetector{},
	}
}

// ByLanguage returns the detector for a language tag.
func ByLanguage(lang string) (Detector, bool) {
	for _, d := range All() {
		if d.Language() == lang {
			return d, true
		}
	}
	return nil, false
}

// newError builds a NormalizedError whose Stack and RawLines hold a private copy of lines.
func newError(lang, errorType, message string, lines []string) NormalizedError {
	raw := make([]string, len(lines))
	copy(raw, lines)
	return NormalizedError{
		Language:  lang,
		ErrorType: errorType,
		Message:   message,
		Stack:     strings.Join(raw, "\n"),
		RawLines:  raw,
	}
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
