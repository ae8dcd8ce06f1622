package tui

import "github.com/charmbracelet/lipgloss"

// StyleConfig holds all customizable style colors for the viewer.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color
	ErrorColor     lipgloss.Color
	ErrorBack      lipgloss.Color

	// Accent colors per language tag
	LanguageColors map[string]lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		ErrorColor:     lipgloss.Color("#FF5555"),
		ErrorBack:      lipgloss.Color("#2D0000"),
		LanguageColors: map[string]lipgloss.Color{
			"python": lipgloss.Color("#FBBC04"), // Yellow
			"go":     lipgloss.Color("#24C1E0"), // Cyan
			"ruby":   lipgloss.Color("#EA4335"), // Red
			"java":   lipgloss.Color("#A142F4"), // Purple
			"rust":   lipgloss.Color("#F29900"), // Orange
		},
	}
}

// LanguageColor returns the accent for a language, falling back to the secondary text color.
func (s *StyleConfig) LanguageColor(language string) lipgloss.Color {
	if c, ok := s.LanguageColors[language]; ok {
		return c
	}
	return s.TextSecondary
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// PanelStyle returns the bordered container used by both panels.
func (s *StyleConfig) PanelStyle(focused bool) lipgloss.Style {
	border := s.BorderColor
	if focused {
		border = s.AccentBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}
