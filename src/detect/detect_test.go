package detect

import (
	"strings"
	"testing"
)

func TestAll_PriorityOrder(t *testing.T) {
	want := []string{Python, Go, Ruby, Java, Rust}
	got := All()
	if len(got) != len(want) {
		t.Fatalf("expected %d detectors, got %d", len(want), len(got))
	}
	for i, d := range got {
		if d.Language() != want[i] {
			t.Errorf("detector %d: expected %s, got %s", i, want[i], d.Language())
		}
	}
}

func TestByLanguage(t *testing.T) {
	d, ok := ByLanguage(Rust)
	if !ok || d.Language() != Rust {
		t.Fatalf("expected rust detector, got %v (ok=%v)", d, ok)
	}
	if _, ok := ByLanguage("cobol"); ok {
		t.Error("expected no detector for unknown language")
	}
}

func TestIsErrorStart(t *testing.T) {
	tests := []struct {
		name     string
		detector Detector
		line     string
		want     bool
	}{
		{"python header", PythonDetector{}, "Traceback (most recent call last):", true},
		{"python indented header", PythonDetector{}, "  Traceback (most recent call last):", false},
		{"python verdict alone", PythonDetector{}, "ValueError: bad", false},
		{"go panic", GoDetector{}, "panic: runtime error: index out of range [5] with length 3", true},
		{"go panic no space", GoDetector{}, "panic:boom", true},
		{"go word panic", GoDetector{}, "a panic: happened", false},
		{"ruby strict", RubyDetector{}, "app.rb:3:in `divide': divided by 0 (ZeroDivisionError)", true},
		{"ruby 3.4 quote", RubyDetector{}, "app.rb:3:in 'Integer#/': divided by 0 (ZeroDivisionError)", true},
		{"ruby loose with paren", RubyDetector{}, "app.rb:3:in `call': oops (see log", true},
		{"ruby loose without paren", RubyDetector{}, "app.rb:3:in `call': oops", false},
		{"ruby from line", RubyDetector{}, "\tfrom app.rb:7:in `<main>'", false},
		{"java thread", JavaDetector{}, `Exception in thread "main" java.lang.NullPointerException`, true},
		{"java bare", JavaDetector{}, "java.lang.IllegalStateException: boom", true},
		{"java error class", JavaDetector{}, "java.lang.OutOfMemoryError: Java heap space", true},
		{"java at line", JavaDetector{}, "\tat com.example.Main.main(Main.java:5)", false},
		{"rust old", RustDetector{}, "thread 'main' panicked at 'boom', src/main.rs:2:5", true},
		{"rust new", RustDetector{}, "thread 'main' panicked at src/main.rs:2:5:", true},
		{"rust no panic", RustDetector{}, "thread 'main' exited", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.detector.IsErrorStart(tt.line); got != tt.want {
				t.Errorf("IsErrorStart(%q) = %v, expected %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestPythonDetector_IsContinuation(t *testing.T) {
	d := PythonDetector{}
	header := []string{"Traceback (most recent call last):"}
	afterFrame := append(header, `  File "app.py", line 3, in <module>`, "    main()")
	afterVerdict := append(afterFrame, "ValueError: bad")

	tests := []struct {
		name  string
		line  string
		sofar []string
		want  bool
	}{
		{"file line", `  File "app.py", line 3, in <module>`, header, true},
		{"source excerpt", "    main()", header, true},
		{"blank", "", afterVerdict, true},
		{"verdict after frame", "ValueError: bad", afterFrame, true},
		{"line after verdict", "next program output", afterVerdict, false},
		{"nothing accumulated", "anything", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsContinuation(tt.line, tt.sofar); got != tt.want {
				t.Errorf("IsContinuation(%q) = %v, expected %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestGoDetector_IsContinuation(t *testing.T) {
	d := GoDetector{}
	accepted := []string{
		"goroutine 1 [running]:",
		"\t/home/u/main.go:12 +0x1d",
		"",
		"main.main()",
		"net/http.(*conn).serve(0xc000132000, {0x7a6f58, 0xc0000a4120})",
	}
	for _, line := range accepted {
		if !d.IsContinuation(line, nil) {
			t.Errorf("expected %q to continue a Go panic", line)
		}
	}
	if d.IsContinuation("exit status 2", nil) {
		t.Error("expected 'exit status 2' not to continue a Go panic")
	}
}

func TestJavaDetector_IsContinuation(t *testing.T) {
	d := JavaDetector{}
	accepted := []string{
		"\tat com.example.Main.main(Main.java:5)",
		"Caused by: java.io.IOException: disk full",
		"\t... 3 more",
		"    suppressed detail",
	}
	for _, line := range accepted {
		if !d.IsContinuation(line, nil) {
			t.Errorf("expected %q to continue a Java trace", line)
		}
	}
	if d.IsContinuation("Server stopped", nil) {
		t.Error("expected unindented line not to continue a Java trace")
	}
}

func TestRustDetector_IsContinuation(t *testing.T) {
	d := RustDetector{}
	accepted := []string{
		"note: run with `RUST_BACKTRACE=1` environment variable to display a backtrace",
		"stack backtrace:",
		"   0: rust_begin_unwind",
		"             at /rustc/abc/library/std/src/panicking.rs:645:5",
	}
	for _, line := range accepted {
		if !d.IsContinuation(line, nil) {
			t.Errorf("expected %q to continue a Rust panic", line)
		}
	}
	if d.IsContinuation("explicit panic", nil) {
		t.Error("expected bare message line not to continue a Rust panic")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		detector Detector
		lines    []string
		wantType string
		wantMsg  string
	}{
		{
			name:     "python verdict",
			detector: PythonDetector{},
			lines: []string{
				"Traceback (most recent call last):",
				`  File "app.py", line 3, in <module>`,
				"    int('x')",
				"ValueError: invalid literal for int() with base 10: 'x'",
				"",
			},
			wantType: "ValueError",
			wantMsg:  "invalid literal for int() with base 10: 'x'",
		},
		{
			name:     "python verdict without colon",
			detector: PythonDetector{},
			lines: []string{
				"Traceback (most recent call last):",
				`  File "app.py", line 9, in <module>`,
				"KeyboardInterrupt",
			},
			wantType: "KeyboardInterrupt",
			wantMsg:  "",
		},
		{
			name:     "go panic",
			detector: GoDetector{},
			lines:    []string{"panic: runtime error: invalid memory address or nil pointer dereference", "", "goroutine 1 [running]:"},
			wantType: "panic",
			wantMsg:  "runtime error: invalid memory address or nil pointer dereference",
		},
		{
			name:     "go panic without space",
			detector: GoDetector{},
			lines:    []string{"panic:boom"},
			wantType: "panic",
			wantMsg:  "panic:boom",
		},
		{
			name:     "ruby strict",
			detector: RubyDetector{},
			lines:    []string{"app.rb:3:in `divide': divided by 0 (ZeroDivisionError)", "\tfrom app.rb:7:in `<main>'"},
			wantType: "ZeroDivisionError",
			wantMsg:  "divided by 0",
		},
		{
			name:     "ruby loose",
			detector: RubyDetector{},
			lines:    []string{"app.rb:3:in `call': oops (see log"},
			wantType: "",
			wantMsg:  "oops (see log",
		},
		{
			name:     "ruby unmatched",
			detector: RubyDetector{},
			lines:    []string{"garbage"},
			wantType: UnknownErrorType,
			wantMsg:  "",
		},
		{
			name:     "java thread with message",
			detector: JavaDetector{},
			lines:    []string{`Exception in thread "main" java.lang.IllegalStateException: boom`, "\tat Main.main(Main.java:3)"},
			wantType: "java.lang.IllegalStateException",
			wantMsg:  "boom",
		},
		{
			name:     "java thread without message",
			detector: JavaDetector{},
			lines:    []string{`Exception in thread "worker-1" java.lang.StackOverflowError`},
			wantType: "java.lang.StackOverflowError",
			wantMsg:  "",
		},
		{
			name:     "java thread unmatched",
			detector: JavaDetector{},
			lines:    []string{`Exception in thread "main" something odd`},
			wantType: UnknownErrorType,
			wantMsg:  "",
		},
		{
			name:     "java bare",
			detector: JavaDetector{},
			lines:    []string{"java.lang.IllegalArgumentException: bad id", "\tat Svc.run(Svc.java:10)"},
			wantType: "java.lang.IllegalArgumentException",
			wantMsg:  "bad id",
		},
		{
			name:     "java raw line",
			detector: JavaDetector{},
			lines:    []string{"com.example.FatalError"},
			wantType: "com.example.FatalError",
			wantMsg:  "",
		},
		{
			name:     "rust quoted",
			detector: RustDetector{},
			lines:    []string{"thread 'main' panicked at 'called `Option::unwrap()` on a `None` value', src/main.rs:4:37"},
			wantType: "panic[thread 'main']",
			wantMsg:  "called `Option::unwrap()` on a `None` value",
		},
		{
			name:     "rust unquoted",
			detector: RustDetector{},
			lines:    []string{"thread 'tokio-runtime-worker' panicked at src/lib.rs:10:9:", "explicit panic"},
			wantType: "panic[thread 'tokio-runtime-worker']",
			wantMsg:  "src/lib.rs:10:9:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.detector.Parse(tt.lines)
			if got.Language != tt.detector.Language() {
				t.Errorf("expected language %s, got %s", tt.detector.Language(), got.Language)
			}
			if got.ErrorType != tt.wantType {
				t.Errorf("expected error type %q, got %q", tt.wantType, got.ErrorType)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, got.Message)
			}
			if got.Stack != strings.Join(tt.lines, "\n") {
				t.Errorf("expected stack to be the joined segment, got %q", got.Stack)
			}
		})
	}
}

func TestParse_RawLinesAreCopied(t *testing.T) {
	lines := []string{"panic: boom", "goroutine 1 [running]:"}
	got := GoDetector{}.Parse(lines)

	lines[0] = "mutated"
	if got.RawLines[0] != "panic: boom" {
		t.Errorf("expected RawLines to be independent of the input slice, got %q", got.RawLines[0])
	}
}

func TestParse_EmptySegment(t *testing.T) {
	for _, d := range All() {
		got := d.Parse(nil)
		if got.Stack != "" || len(got.RawLines) != 0 {
			t.Errorf("%s: expected empty stack for empty segment, got %q", d.Language(), got.Stack)
		}
	}
}
