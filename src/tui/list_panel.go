package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/export"
)

// renderListPanel renders the left panel with the metric list
func (m MainModel) renderListPanel(width, height int) string {
	// list size is set in resizeComponents(), not here during render
	listPanel := m.styles.PanelStyle(!m.detailFocused).
		Width(width - 2).
		Height(height).
		Render(m.listView.Render())

	delegate := m.listView.GetDelegate()
	rankHeader := fmt.Sprintf("%*s", delegate.RankWidth, "#")
	headerText := fmt.Sprintf("%s \u2502 St \u2502 %s \u2502 Summary", rankHeader, export.TruncateAndPad("Metric", nameWidth, false))
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(export.Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, listPanel)
}
