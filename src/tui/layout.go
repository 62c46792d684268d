package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/export"
)

// panelDimensions holds calculated layout dimensions
type panelDimensions struct {
	availableHeight int
	leftPanelWidth  int
	rightPanelWidth int
}

// calculateDimensions computes panel sizes based on terminal dimensions.
func (m MainModel) calculateDimensions() panelDimensions {
	headerHeight := lipgloss.Height(m.header.Render(m.width))
	// header + help line (1) + panel column header row (1) + panel borders (2)
	availableHeight := max(1, m.height-headerHeight-1-1-2)

	// Metric list (45%) | Detail (55%)
	leftPanelWidth := int(float64(m.width) * 0.45)
	rightPanelWidth := m.width - leftPanelWidth

	return panelDimensions{
		availableHeight: availableHeight,
		leftPanelWidth:  leftPanelWidth,
		rightPanelWidth: rightPanelWidth,
	}
}

// View renders the complete TUI layout
func (m MainModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.header.Render(m.width)

	switch m.status {
	case StatusLoading:
		return lipgloss.JoinVertical(lipgloss.Left, header, m.centered(m.progress.View()))
	case StatusFailed:
		return lipgloss.JoinVertical(lipgloss.Left, header, m.centered(m.renderFailure()), m.renderHelpText())
	}

	dims := m.calculateDimensions()
	leftPanel := m.renderListPanel(dims.leftPanelWidth, dims.availableHeight)
	rightPanel := m.renderDetailPanel(dims.rightPanelWidth, dims.availableHeight)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)

	return lipgloss.JoinVertical(lipgloss.Left, header, mainContent, m.renderHelpText())
}

func (m MainModel) centered(s string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		PaddingTop(2).
		Render(s)
}

// renderFailure shows the user-facing error and its hint.
func (m MainModel) renderFailure() string {
	width := max(20, m.width-8)
	title := lipgloss.NewStyle().Foreground(m.styles.Toxic).Bold(true).
		Render(export.Wrap(m.failure.Message, width))
	if m.failure.Hint == "" {
		return title
	}
	hint := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).
		Render(export.Wrap("Hint: "+m.failure.Hint, width))
	return lipgloss.JoinVertical(lipgloss.Center, title, "", hint)
}

// renderHelpText renders context-aware help text at the bottom
func (m MainModel) renderHelpText() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue).Bold(true)
	sepStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	var helpText string
	switch {
	case m.status == StatusFailed:
		helpText = fmt.Sprintf("%s: Quit", keyStyle.Render("q"))
	case m.searchMode:
		helpText = fmt.Sprintf("%s: Apply %s %s: Clear",
			keyStyle.Render("Enter"), sepStyle.Render("\u2022"),
			keyStyle.Render("Esc"))
	case m.detailFocused:
		helpText = fmt.Sprintf("%s: Scroll %s %s: Back %s %s: Quit",
			keyStyle.Render("j/k"), sepStyle.Render("\u2022"),
			keyStyle.Render("Esc"), sepStyle.Render("\u2022"),
			keyStyle.Render("q"))
	default:
		helpText = fmt.Sprintf("%s: Nav %s %s: View %s %s: Filter %s %s %s",
			keyStyle.Render("j/k"), sepStyle.Render("\u2022"),
			keyStyle.Render("Enter"), sepStyle.Render("\u2022"),
			keyStyle.Render("Tab"), sepStyle.Render("\u2022"),
			keyStyle.Render("/"), keyStyle.Render("q"))
	}

	return m.styles.HelpStyle().Render(helpText)
}

// resizeComponents handles window resize events
func (m *MainModel) resizeComponents() {
	dims := m.calculateDimensions()

	// panel borders
	m.listView.SetSize(dims.leftPanelWidth-2, dims.availableHeight)

	// borders and the title row
	m.detailViewport.Width = max(1, dims.rightPanelWidth-2)
	m.detailViewport.Height = max(1, dims.availableHeight-1)

	m.updateDetailContent()
}
