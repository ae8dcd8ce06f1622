package detect

import (
	"regexp"
	"strings"
)

var (
	javaStartPattern = regexp.MustCompile(`^[\w.$]+(?:Exception|Error)`)

	// Exception in thread "main" java.lang.IllegalStateException: boom
	javaThreadPattern = regexp.MustCompile(`^Exception in thread ".*?" ([\w.$]+(?:Exception|Error)):\s*(.*)`)
	// Exception in thread "main" java.lang.StackOverflowError
	javaThreadNoMessagePattern = regexp.MustCompile(`^Exception in thread ".*?" ([\w.$]+(?:Exception|Error))`)
	// java.lang.IllegalStateException: boom
	javaBarePattern = regexp.MustCompile(`^([\w.$]+(?:Exception|Error)):\s*(.*)`)

	javaAtPattern       = regexp.MustCompile(`^\s+at `)
	javaCausedByPattern = regexp.MustCompile(`^Caused by:`)
	javaElidedPattern   = regexp.MustCompile(`^\s+\.\.\.`)
	javaIndentPattern   = regexp.MustCompile(`^\s`)
)

// JavaDetector recognizes JVM exception traces.
type JavaDetector struct{}

func (JavaDetector) Language() string { return Java }

func (JavaDetector) IsErrorStart(line string) bool {
	return strings.HasPrefix(line, "Exception in thread") || javaStartPattern.MatchString(line)
}

func (JavaDetector) IsContinuation(line string, _ []string) bool {
	return javaAtPattern.MatchString(line) ||
		javaCausedByPattern.MatchString(line) ||
		javaElidedPattern.MatchString(line) ||
		javaIndentPattern.MatchString(line)
}

func (JavaDetector) Parse(lines []string) NormalizedError {
	first := firstLine(lines)
	errorType := UnknownErrorType
	message := ""

	if strings.HasPrefix(first, "Exception in thread") {
		if m := javaThreadPattern.FindStringSubmatch(first); m != nil {
			errorType, message = m[1], m[2]
		} else if m := javaThreadNoMessagePattern.FindStringSubmatch(first); m != nil {
			errorType = m[1]
		}
	} else if m := javaBarePattern.FindStringSubmatch(first); m != nil {
		errorType, message = m[1], m[2]
	} else {
		errorType = first
	}

	return newError(Java, errorType, message, lines)
}
