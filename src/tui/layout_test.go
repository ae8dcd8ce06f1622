package tui

import (
	"regexp"
	"strings"
	"testing"

	"devsonar/src/store"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func truncateString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func assertFitsWidth(t *testing.T, view string, width int) {
	t.Helper()
	for i, line := range strings.Split(stripAnsi(view), "\n") {
		if w := VisualWidth(line); w > width {
			t.Errorf("line %d exceeds terminal width %d (got %d): %q", i, width, w, truncateString(line, 80))
		}
	}
}

func TestLayout_LongLinesDoNotOverflow(t *testing.T) {
	long := strings.Repeat("x", 400)
	records := []store.Record{{
		ID:          "long",
		Language:    "java",
		Source:      strings.Repeat("service-", 20),
		Message:     "java.lang.IllegalStateException: " + long,
		Stack:       "\tat com.example.Service.handle(" + long + ".java:10)\n\tat com.example.Main.main(Main.java:5)",
		Context:     map[string]any{"path": long},
		ForwardedAt: baseTime,
		Outcome:     "forwarded",
	}}

	for _, width := range []int{60, 100, 160} {
		m := createTestModel(t, records, width, 30)
		assertFitsWidth(t, m.View(), width)
	}
}

func TestLayout_ResizeRewrapsDetail(t *testing.T) {
	m := createTestModel(t, testRecords(), 160, 30)
	wide := m.detailViewport.Width

	m = createTestModel(t, testRecords(), 70, 30)
	if m.detailViewport.Width >= wide {
		t.Fatalf("expected narrower viewport after resize, got %d (was %d)", m.detailViewport.Width, wide)
	}
	for _, line := range strings.Split(stripAnsi(m.detailViewport.View()), "\n") {
		if w := VisualWidth(line); w > m.detailViewport.Width {
			t.Errorf("detail line wider than viewport %d: %q", m.detailViewport.Width, line)
		}
	}
}

func TestLayout_ViewBeforeReady(t *testing.T) {
	m := NewMainModel(nil)
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing placeholder before the first resize")
	}
}

func TestLayout_LoadingShowsLogo(t *testing.T) {
	m := NewMainModel(nil)
	m.ready = true
	m.width = 100
	m.height = 30
	view := stripAnsi(m.View())
	if !strings.Contains(view, sonarLogo[0]) {
		t.Errorf("expected logo while loading, got:\n%s", view)
	}
}

func TestLayout_HelpReflectsFocus(t *testing.T) {
	m := createTestModel(t, testRecords(), 160, 30)
	if !strings.Contains(stripAnsi(m.renderHelpText()), "Refresh") {
		t.Error("expected list help to mention refresh")
	}
	m.detailFocused = true
	if !strings.Contains(stripAnsi(m.renderHelpText()), "Back") {
		t.Error("expected detail help to mention back")
	}
}
