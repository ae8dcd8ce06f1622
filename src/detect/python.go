package detect

import "strings"

const pythonTracebackHeader = "Traceback (most recent call last):"

// PythonDetector recognizes CPython tracebacks.
//
//	Traceback (most recent call last):
//	  File "app.py", line 3, in <module>
//	    main()
//	ValueError: invalid literal for int() with base 10: 'x'
type PythonDetector struct{}

func (PythonDetector) Language() string { return Python }

func (PythonDetector) IsErrorStart(line string) bool {
	return line == pythonTracebackHeader
}

// IsContinuation keeps accepting lines until the verdict line has appeared, i.e. while the
// last non-blank line is still a frame or its source excerpt.
func (PythonDetector) IsContinuation(line string, linesSoFar []string) bool {
	if isPythonFrameLine(line) || line == "" {
		return true
	}

	last, ok := lastNonBlank(linesSoFar)
	if !ok {
		return true
	}
	return isPythonFrameLine(last)
}

// Parse splits the verdict line at the first ": " into type and message.
func (PythonDetector) Parse(lines []string) NormalizedError {
	verdict, _ := lastNonBlank(lines)

	errorType := UnknownErrorType
	message := ""
	if idx := strings.Index(verdict, ": "); idx != -1 {
		errorType = verdict[:idx]
		message = verdict[idx+2:]
	} else if verdict != "" {
		errorType = verdict
	}

	return newError(Python, errorType, message, lines)
}

func isPythonFrameLine(line string) bool {
	return strings.HasPrefix(line, `  File "`) || strings.HasPrefix(line, "    ")
}

func lastNonBlank(lines []string) (string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], true
		}
	}
	return "", false
}
