package detect

import (
	"regexp"
	"strings"
)

var (
	// rubyStrictPattern: app.rb:3:in `divide': divided by 0 (ZeroDivisionError)
	// Ruby 3.4 quotes the method with a plain apostrophe, both forms are accepted.
	rubyStrictPattern = regexp.MustCompile("^(.+:\\d+):in [`'].+': (.+) \\((\\S+)\\)")

	// rubyLoosePattern is the same shape without the trailing class name.
	rubyLoosePattern = regexp.MustCompile("^(.+:\\d+):in [`'].+': (.+)")

	rubyFromPattern = regexp.MustCompile(`^\s+from `)
)

// RubyDetector recognizes uncaught Ruby exceptions.
type RubyDetector struct{}

func (RubyDetector) Language() string { return Ruby }

func (RubyDetector) IsErrorStart(line string) bool {
	if rubyStrictPattern.MatchString(line) {
		return true
	}
	return rubyLoosePattern.MatchString(line) && strings.Contains(line, "(")
}

func (RubyDetector) IsContinuation(line string, _ []string) bool {
	return rubyFromPattern.MatchString(line)
}

// Parse takes the class name from the trailing parentheses. Without them the message is
// still extracted and the type is left empty.
func (RubyDetector) Parse(lines []string) NormalizedError {
	first := firstLine(lines)

	if m := rubyStrictPattern.FindStringSubmatch(first); m != nil {
		return newError(Ruby, m[3], m[2], lines)
	}
	if m := rubyLoosePattern.FindStringSubmatch(first); m != nil {
		return newError(Ruby, "", m[2], lines)
	}
	return newError(Ruby, UnknownErrorType, "", lines)
}
