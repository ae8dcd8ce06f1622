package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 4

	timeWidth     = 8 // 15:04:05
	languageWidth = 6 // python
)

// Delegate renders history items as table rows.
type Delegate struct {
	RankWidth  int
	RecurWidth int
	styles     *StyleConfig
}

// NewDelegate creates a new table delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{
		RankWidth:  2,
		RecurWidth: 2,
		styles:     styles,
	}
}

// SetColumnWidths sets the widths for rank and recurrence columns
func (d *Delegate) SetColumnWidths(maxRank, maxRecurrence int) {
	d.RankWidth = max(2, len(fmt.Sprintf("%d", maxRank)))
	d.RecurWidth = max(2, len(fmt.Sprintf("%d", maxRecurrence)))
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// snippetText returns the first meaningful line of the message, falling back to the stack.
func snippetText(entry Item) string {
	if line := firstLine(CleanLogText(entry.Record.Message)); line != "" {
		return line
	}
	return firstLine(CleanLogText(entry.Record.Stack))
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	rankCol := fmt.Sprintf("%*d", d.RankWidth, entry.Rank)
	timeCol := entry.Record.ForwardedAt.Local().Format("15:04:05")
	langCol := TruncateAndPad(entry.Record.Language, languageWidth, false)
	recurCol := fmt.Sprintf("%*d", d.RecurWidth, entry.Recurrence)

	// Fixed columns plus four " │ " separators.
	fixedWidth := d.RankWidth + timeWidth + languageWidth + d.RecurWidth + 12
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var snippet string
	if availableWidth > 0 {
		snippet = TruncateAndPad(snippetText(entry), availableWidth, true)
	}

	line := fmt.Sprintf("%s │ %s │ %s │ %s │ %s",
		rankCol, timeCol, langCol, recurCol, snippet)
	if m.Width() > 0 {
		line = runewidth.Truncate(line, m.Width(), "")
	}

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if entry.Record.Outcome == "failed" {
		style = style.Foreground(d.styles.ErrorColor)
	}
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, style.Render(line))
}
