package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderDetail renders the detail content for a history item
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	r := item.Record
	content := strings.Builder{}
	label := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Bold(true)
	faint := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Faint(true)

	meta := fmt.Sprintf("Language: %s | Source: %s | Seen: %dx",
		valueOr(r.Language, "unknown"), valueOr(r.Source, "unknown"), item.Recurrence)
	fmt.Fprintf(&content, "%s\n", lipgloss.NewStyle().
		Foreground(m.styles.LanguageColor(r.Language)).
		Bold(true).
		Render(Wrap(meta, maxWidth)))

	when := fmt.Sprintf("Forwarded: %s | Outcome: %s",
		r.ForwardedAt.Local().Format("2006-01-02 15:04:05"), valueOr(r.Outcome, "unknown"))
	fmt.Fprintf(&content, "%s\n\n", faint.Render(Wrap(when, maxWidth)))

	fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.ErrorColor).Bold(true).Render("ERROR:"))
	fmt.Fprint(&content, lipgloss.NewStyle().
		Foreground(m.styles.ErrorColor).
		Background(m.styles.ErrorBack).
		Render(WrapPreserveIndent(CleanLogText(r.Message), maxWidth)))
	fmt.Fprint(&content, "\n\n")

	if r.Outcome == "failed" && r.Error != "" {
		fmt.Fprintln(&content, label.Render("Forward failed:"))
		fmt.Fprintln(&content, faint.Render(Wrap(r.Error, maxWidth)))
		fmt.Fprintln(&content)
	}

	if stack := strings.TrimRight(CleanLogText(r.Stack), "\n"); stack != "" {
		fmt.Fprintln(&content, label.Render("Stack:"))
		for _, line := range SplitLines(WrapPreserveIndent(stack, maxWidth)) {
			fmt.Fprintln(&content, faint.Render(line))
		}
		fmt.Fprintln(&content)
	}

	if len(r.Context) > 0 {
		fmt.Fprintln(&content, label.Render("Context:"))
		keys := make([]string, 0, len(r.Context))
		for k := range r.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(&content, faint.Render(Wrap(fmt.Sprintf("%s: %v", k, r.Context[k]), maxWidth)))
		}
	}

	return content.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	// 1 char padding on each side
	maxWidth := m.detailViewport.Width - 2
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	if selectedItem, ok := m.listView.Selected(); ok {
		headerText := fmt.Sprintf("ID: %s", selectedItem.Record.ID)
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Width(width-2).
			Padding(0, 1).
			Render(Truncate(headerText, width-4, true))

		return lipgloss.JoinVertical(lipgloss.Left, headerRow,
			m.styles.PanelStyle(m.detailFocused).
				Width(width-2).
				Height(height).
				Render(m.detailViewport.View()))
	}

	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	emptyStyle := m.styles.PanelStyle(false).
		Width(width-2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true)

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, emptyStyle.Render("No errors recorded"))
}
