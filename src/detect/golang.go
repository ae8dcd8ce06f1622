package detect

import (
	"regexp"
	"strings"
)

// goFramePattern matches a call frame such as "main.main()" or "net/http.(*conn).serve(0xc0001)".
var goFramePattern = regexp.MustCompile(`^\S+\.\S+\(`)

// GoDetector recognizes Go runtime panics and their goroutine dumps.
type GoDetector struct{}

func (GoDetector) Language() string { return Go }

func (GoDetector) IsErrorStart(line string) bool {
	return strings.HasPrefix(line, "panic:")
}

func (GoDetector) IsContinuation(line string, _ []string) bool {
	switch {
	case strings.HasPrefix(line, "goroutine "),
		strings.HasPrefix(line, "\t"),
		line == "":
		return true
	}
	return goFramePattern.MatchString(line)
}

func (GoDetector) Parse(lines []string) NormalizedError {
	first := firstLine(lines)
	message := first
	if rest, ok := strings.CutPrefix(first, "panic: "); ok {
		message = rest
	}
	return newError(Go, "panic", message, lines)
}
