package tui

import (
	"strings"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short text unchanged", "hello world", 20, "hello world"},
		{"exact width", "hello", 5, "hello"},
		{"breaks on word boundary", "one two three four", 9, "one two\nthree\nfour"},
		{"long word broken mid-word", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"empty string", "", 10, ""},
		{"zero width returns input", "keep as is", 0, "keep as is"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.width)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWrap_MultiByteCharacters(t *testing.T) {
	// Each CJK rune is two cells wide.
	got := Wrap("错误错误错误", 4)
	for _, line := range strings.Split(got, "\n") {
		if w := VisualWidth(line); w > 4 {
			t.Errorf("expected line width <= 4, got %d for %q", w, line)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		ellipsis bool
		want     string
	}{
		{"fits", "panic: boom", 20, true, "panic: boom"},
		{"ellipsis", "ValueError: invalid literal", 10, true, "ValueEr..."},
		{"no ellipsis", "ValueError: invalid literal", 10, false, "ValueError"},
		{"trims whitespace", "  spaced  ", 10, false, "spaced"},
		{"zero width", "anything", 0, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.text, tt.max, tt.ellipsis); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTruncateAndPad(t *testing.T) {
	got := TruncateAndPad("go", 6, false)
	if got != "go    " {
		t.Errorf("expected padded cell, got %q", got)
	}
	got = TruncateAndPad("python3", 6, false)
	if got != "python" {
		t.Errorf("expected truncated cell, got %q", got)
	}
}

func TestCleanLogText(t *testing.T) {
	got := CleanLogText("\x1b[31mTraceback\x1b[0m (most recent call last):\r\n")
	want := "Traceback (most recent call last):\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestWrapPreserveIndent(t *testing.T) {
	stack := "goroutine 1 [running]:\nmain.main()\n\t/home/user/project/cmd/server/main.go:42 +0x1d"
	got := WrapPreserveIndent(stack, 24)

	lines := strings.Split(got, "\n")
	if lines[0] != "goroutine 1 [running]:" {
		t.Errorf("expected first line unchanged, got %q", lines[0])
	}
	for _, line := range lines {
		if w := VisualWidth(line); w > 24 {
			t.Errorf("expected line width <= 24, got %d for %q", w, line)
		}
	}
	for _, line := range lines[2:] {
		if !strings.HasPrefix(line, "    ") {
			t.Errorf("expected continuation to keep indentation, got %q", line)
		}
	}
}

func TestWrapPreserveIndent_KeepsBlankLines(t *testing.T) {
	got := WrapPreserveIndent("a\n\nb", 10)
	if got != "a\n\nb" {
		t.Errorf("expected blank line preserved, got %q", got)
	}
}
