package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/contracts"
	"rapport-agent/src/history"
)

// Metric list filters, cycled with Tab.
const (
	FilterAll      = "ALL"
	FilterComputed = "COMPUTED"
	FilterAbsent   = "ABSENT"
)

var filters = []string{FilterAll, FilterComputed, FilterAbsent}

// Header represents the top status bar component.
type Header struct {
	report         *contracts.Report
	selectedFilter string
	searchQuery    string
	searchMode     bool
	styles         *StyleConfig
}

// NewHeader creates a new header with default styles
func NewHeader() Header {
	return NewHeaderWithStyles(DefaultStyles())
}

// NewHeaderWithStyles creates a new header with custom styles
func NewHeaderWithStyles(styles *StyleConfig) Header {
	return Header{
		selectedFilter: FilterAll,
		styles:         styles,
	}
}

// SetReport sets the report summarized in the header.
func (h *Header) SetReport(r *contracts.Report) {
	h.report = r
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

// status renders the health summary, or a placeholder before the report.
func (h Header) status() string {
	style := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)
	if h.report == nil {
		return style.Render("Relationship health")
	}

	sum := history.Summarize(h.report)
	parties := sum.PartyA
	if sum.PartyB != "" {
		parties += " & " + sum.PartyB
	}
	level := lipgloss.NewStyle().
		Foreground(h.styles.LevelColor(h.report.HealthLevel)).
		Bold(true).
		Render(fmt.Sprintf("%.1f (%s)", h.report.HealthScore, h.report.HealthLevel))
	return style.Render(fmt.Sprintf("%s: ", parties)) + level
}

// Render renders the header
func (h Header) Render(width int) string {
	filterStyle := lipgloss.NewStyle().
		Foreground(h.styles.PrimaryBlue).
		Bold(true).
		Padding(0, 2)
	filter := filterStyle.Render(fmt.Sprintf("Show: %s", h.selectedFilter))

	var searchText string
	if h.searchMode {
		searchText = fmt.Sprintf("Search: %s\u2588", h.searchQuery)
	} else if h.searchQuery != "" {
		searchText = fmt.Sprintf("Search: %s", h.searchQuery)
	} else {
		searchText = "[/] to search"
	}

	searchStyle := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2)
	if h.searchMode {
		searchStyle = searchStyle.Foreground(h.styles.PrimaryBlue)
	}
	search := searchStyle.Render(searchText)

	leftSection := lipgloss.JoinHorizontal(lipgloss.Left, h.status(), filter, search)

	headerStyle := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		MaxWidth(width).
		Width(width)

	spacer := lipgloss.NewStyle().Width(max(0, width-lipgloss.Width(leftSection))).Render("")
	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSection, spacer)

	return headerStyle.Render(content)
}
