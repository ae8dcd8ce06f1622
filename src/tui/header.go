package tui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// FilterAll is the language filter that shows every record.
const FilterAll = "ALL"

// Header represents the top status bar component.
type Header struct {
	status         string
	selectedFilter string
	languages      []string
	searchQuery    string
	searchMode     bool
	styles         *StyleConfig
}

// NewHeader creates a new header with default styles
func NewHeader(status string) Header {
	return NewHeaderWithStyles(status, DefaultStyles())
}

// NewHeaderWithStyles creates a new header with custom styles
func NewHeaderWithStyles(status string, styles *StyleConfig) Header {
	return Header{
		status:         status,
		selectedFilter: FilterAll,
		styles:         styles,
	}
}

// SetStatus replaces the status text.
func (h *Header) SetStatus(status string) {
	h.status = status
}

// SetLanguages sets the languages available to the filter, derived from the loaded items.
// A selected filter that is no longer available resets to FilterAll.
func (h *Header) SetLanguages(items []Item) {
	seen := make(map[string]bool)
	h.languages = h.languages[:0]
	for _, item := range items {
		lang := item.Record.Language
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		h.languages = append(h.languages, lang)
	}
	sort.Strings(h.languages)

	if h.selectedFilter != FilterAll && !seen[h.selectedFilter] {
		h.selectedFilter = FilterAll
	}
}

// SetFilter sets the current filter
func (h *Header) SetFilter(filter string) {
	h.selectedFilter = filter
}

// GetFilter returns the current filter
func (h Header) GetFilter() string {
	return h.selectedFilter
}

// CycleFilter cycles to the next filter
func (h *Header) CycleFilter() {
	filters := append([]string{FilterAll}, h.languages...)
	currentIndex := 0
	for i, f := range filters {
		if f == h.selectedFilter {
			currentIndex = i
			break
		}
	}
	h.selectedFilter = filters[(currentIndex+1)%len(filters)]
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

// Render renders the header
func (h Header) Render(width int) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)

	status := sectionStyle.Render(fmt.Sprintf("devsonar │ %s", h.status))

	filterColor := h.styles.PrimaryBlue
	if h.selectedFilter != FilterAll {
		filterColor = h.styles.LanguageColor(h.selectedFilter)
	}
	filter := sectionStyle.Foreground(filterColor).Render(fmt.Sprintf("Lang: %s", h.selectedFilter))

	var searchText string
	switch {
	case h.searchMode:
		searchText = fmt.Sprintf("Search: %s█", h.searchQuery)
	case h.searchQuery != "":
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	default:
		searchText = "[/] to search"
	}

	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	search := searchStyle.Render(searchText)

	leftSection := lipgloss.JoinHorizontal(lipgloss.Left, status, filter, search)

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width)

	spacer := lipgloss.NewStyle().Width(max(0, width-lipgloss.Width(leftSection))).Render("")

	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSection, spacer))
}
