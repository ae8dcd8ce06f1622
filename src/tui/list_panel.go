package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderListPanel renders the left panel with the error history list
func (m MainModel) renderListPanel(width, height int) string {
	listPanel := m.styles.PanelStyle(!m.detailFocused).
		Width(width - 2).
		Height(height).
		Render(m.listView.Render())

	delegate := m.listView.Delegate()
	rankHeader := fmt.Sprintf("%*s", delegate.RankWidth, "#")
	recurHeader := fmt.Sprintf("%*s", delegate.RecurWidth, "Rc")

	headerText := fmt.Sprintf("%s │ %-*s │ %-*s │ %s │ Message",
		rankHeader, timeWidth, "Time", languageWidth, "Lang", recurHeader)
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, listPanel)
}
