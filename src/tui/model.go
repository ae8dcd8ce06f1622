// Package tui implements the interactive history viewer: a two-panel bubbletea program
// listing forwarded error groups on the left and the selected record's detail on the right.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"devsonar/src/store"
)

// Status is the load state of the viewer.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

// Loader fetches the history to display.
type Loader func(ctx context.Context) ([]store.Record, error)

// RecordsMsg delivers the result of a Loader call.
type RecordsMsg struct {
	Records []store.Record
	Err     error
}

// MainModel is the root bubbletea model.
type MainModel struct {
	styles         *StyleConfig
	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel
	loader         Loader

	items  []Item
	status Status
	err    error

	detailFocused bool
	searchMode    bool
	searchQuery   string

	width  int
	height int
	ready  bool
}

// NewMainModel creates a viewer that loads its records through loader.
func NewMainModel(loader Loader) MainModel {
	styles := DefaultStyles()
	return MainModel{
		styles:         styles,
		header:         NewHeaderWithStyles("loading", styles),
		listView:       NewView(),
		detailViewport: viewport.New(0, 0),
		progress:       NewProgressModel(),
		loader:         loader,
		status:         StatusLoading,
	}
}

// Start runs the viewer in the alternate screen until the user quits.
func Start(loader Loader) error {
	p := tea.NewProgram(NewMainModel(loader), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

// Init starts the spinner and the first load.
func (m MainModel) Init() tea.Cmd {
	return tea.Batch(m.progress.Init(), m.load())
}

func (m MainModel) load() tea.Cmd {
	if m.loader == nil {
		return nil
	}
	loader := m.loader
	return func() tea.Msg {
		records, err := loader(context.Background())
		return RecordsMsg{Records: records, Err: err}
	}
}

// Update handles messages and key presses.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case RecordsMsg:
		if msg.Err != nil {
			m.status = StatusError
			m.err = msg.Err
			m.header.SetStatus("error")
			return m, nil
		}
		m.setRecords(msg.Records)
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(ProgressMsg{Stage: "complete", Loaded: len(msg.Records)})
		return m, cmd

	case ProgressMsg, spinner.TickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *MainModel) setRecords(records []store.Record) {
	m.items = BuildItems(records)
	m.status = StatusReady
	m.err = nil
	m.header.SetLanguages(m.items)
	m.header.SetStatus(fmt.Sprintf("%d errors, %d groups", len(records), len(m.items)))
	m.applyFilter()
}

func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.searchMode {
		switch msg.Type {
		case tea.KeyEnter:
			m.searchMode = false
		case tea.KeyEsc:
			m.searchMode = false
			m.searchQuery = ""
		case tea.KeyBackspace:
			if r := []rune(m.searchQuery); len(r) > 0 {
				m.searchQuery = string(r[:len(r)-1])
			}
		case tea.KeyRunes, tea.KeySpace:
			m.searchQuery += string(msg.Runes)
		default:
			return m, nil
		}
		m.header.SetSearch(m.searchQuery, m.searchMode)
		m.applyFilter()
		return m, nil
	}

	if msg.String() == "q" {
		return m, tea.Quit
	}

	if m.detailFocused {
		switch msg.String() {
		case "esc", "enter":
			m.detailFocused = false
			return m, nil
		}
		var cmd tea.Cmd
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		if _, ok := m.listView.Selected(); ok {
			m.detailFocused = true
		}
		return m, nil
	case "/":
		m.searchMode = true
		m.header.SetSearch(m.searchQuery, true)
		return m, nil
	case "tab":
		m.header.CycleFilter()
		m.applyFilter()
		return m, nil
	case "r":
		if m.loader == nil {
			return m, nil
		}
		m.status = StatusLoading
		m.progress = NewProgressModel()
		return m, tea.Batch(m.progress.Init(), m.load())
	}

	before, _ := m.listView.Selected()
	var cmd tea.Cmd
	m.listView, cmd = m.listView.Update(msg)
	if after, ok := m.listView.Selected(); ok && after.Record.ID != before.Record.ID {
		m.updateDetailContent(after)
	}
	return m, cmd
}
