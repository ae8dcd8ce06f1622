package tui

import (
	"strings"
)

// applyFilter filters items by the language filter and the search query
func (m *MainModel) applyFilter() {
	filter := m.header.GetFilter()

	var filtered []Item
	for _, item := range m.items {
		if filter != FilterAll && item.Record.Language != filter {
			continue
		}
		if m.searchQuery != "" && !matchesQuery(item, strings.ToLower(m.searchQuery)) {
			continue
		}
		filtered = append(filtered, item)
	}

	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.Selected(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}

// matchesQuery reports whether the lowercased query occurs in any searchable field.
func matchesQuery(item Item, query string) bool {
	r := item.Record
	for _, field := range []string{r.Message, r.Source, r.Language, r.Fingerprint, r.Stack} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
