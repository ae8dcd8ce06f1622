package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// View wraps a bubbles list configured as a plain table of history items.
type View struct {
	list     list.Model
	delegate *Delegate
}

// NewView creates an empty list with chrome, filtering and help turned off.
func NewView() View {
	d := NewDelegate()
	l := list.New(nil, &d, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return View{list: l, delegate: &d}
}

// Update forwards navigation keys to the list.
func (v View) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// SetSize sets the list dimensions.
func (v *View) SetSize(width, height int) {
	v.list.SetSize(width, height)
}

// SetItems replaces the rows and resizes the numeric columns to fit them.
func (v *View) SetItems(items []Item) {
	rows := make([]list.Item, len(items))
	maxRank, maxRecurrence := 0, 0
	for i, item := range items {
		rows[i] = item
		maxRank = max(maxRank, item.Rank)
		maxRecurrence = max(maxRecurrence, item.Recurrence)
	}
	v.delegate.SetColumnWidths(maxRank, maxRecurrence)
	v.list.SetItems(rows)
	v.list.ResetSelected()
}

// Selected returns the highlighted item.
func (v View) Selected() (Item, bool) {
	item, ok := v.list.SelectedItem().(Item)
	return item, ok
}

// Len returns the number of rows.
func (v View) Len() int {
	return len(v.list.Items())
}

func (v View) Render() string {
	return v.list.View()
}

// Delegate exposes the row renderer so headers can line up with its columns.
func (v View) Delegate() *Delegate {
	return v.delegate
}
