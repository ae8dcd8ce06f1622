package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// sonarLogo is drawn on the loading screen.
var sonarLogo = []string{
	"▄▄▄▄  ▄▄▄▄▄ ▄   ▄  ▄▄▄▄  ▄▄▄  ▄   ▄  ▄▄▄  ▄▄▄▄ ",
	"█   █ █     █   █ █     █   █ ██  █ █   █ █   █",
	"█   █ ████  █   █  ▀▀▀▄ █   █ █ █ █ █▀▀▀█ █▀▀▄ ",
	"█   █ █      █ █      █ █   █ █  ██ █   █ █   █",
	"▀▀▀▀  ▀▀▀▀▀   ▀   ▀▀▀▀   ▀▀▀  ▀   ▀ ▀   ▀ ▀   ▀",
}

// One shade per logo row, light at the top.
var logoShades = []lipgloss.Color{"#8AB4F8", "#6FA0F6", "#538CF5", "#4285F4", "#3367D6"}

// ProgressMsg reports how far loading has come.
type ProgressMsg struct {
	Stage  string
	Loaded int
}

// ProgressModel renders the loading screen shown until the history arrives.
type ProgressModel struct {
	spinner spinner.Model
	stage   string
	loaded  int
	done    bool
}

// NewProgressModel returns a progress model with a running dot spinner.
func NewProgressModel() ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBC04"))
	return ProgressModel{spinner: s}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update advances the spinner and records stage changes. The spinner stops once the
// "complete" stage arrives.
func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.stage = msg.Stage
		m.loaded = msg.Loaded
		m.done = msg.Stage == "complete"
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	rows := make([]string, len(sonarLogo))
	for i, line := range sonarLogo {
		rows[i] = lipgloss.NewStyle().
			Foreground(logoShades[i%len(logoShades)]).
			Bold(true).
			Render(line)
	}
	logo := strings.Join(rows, "\n")

	var status string
	switch {
	case m.done:
		status = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Render(fmt.Sprintf("✓ Loaded %d records", m.loaded))
	case m.stage != "":
		status = fmt.Sprintf("%s %s...", m.spinner.View(), m.stage)
	default:
		status = fmt.Sprintf("%s Loading history...", m.spinner.View())
	}

	return lipgloss.JoinVertical(lipgloss.Center, logo, "", status)
}
