package tui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
)

// renderDetail renders the detail content for an item
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	if item.IsOverview() {
		var buf bytes.Buffer
		if err := export.Text(&buf, m.report, maxWidth); err != nil {
			return err.Error()
		}
		return clip(strings.TrimRight(buf.String(), "\n"), maxWidth)
	}

	var content strings.Builder
	header := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Render(export.Wrap(fmt.Sprintf("%s (%s)", item.Entry.Name, item.Entry.ID), maxWidth))
	fmt.Fprintf(&content, "%s\n\n", header)

	if item.Absent() {
		fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.Poor).
			Render(export.Wrap("Not available: "+item.Entry.Reason, maxWidth)))
		return clip(content.String(), maxWidth)
	}

	fmt.Fprintln(&content, export.Wrap(item.Entry.Result.MetricSummary(), maxWidth))

	if fl, ok := item.Entry.Result.(contracts.FieldLister); ok {
		fields := fl.Fields()
		labelWidth := 0
		for _, f := range fields {
			labelWidth = max(labelWidth, export.VisualWidth(f.Name))
		}
		labelWidth += 2

		fmt.Fprintln(&content)
		labelStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)
		for _, f := range fields {
			valueWidth := max(10, maxWidth-labelWidth)
			lines := export.SplitLines(export.Wrap(f.Value, valueWidth))
			if len(lines) == 0 {
				lines = []string{""}
			}
			fmt.Fprintf(&content, "%s%s\n", labelStyle.Render(export.TruncateAndPad(f.Name, labelWidth, false)), lines[0])
			for _, line := range lines[1:] {
				fmt.Fprintf(&content, "%s%s\n", strings.Repeat(" ", labelWidth), line)
			}
		}
	}

	var related []contracts.Insight
	for _, in := range m.report.Insights {
		if in.Category == string(item.Entry.ID) {
			related = append(related, in)
		}
	}
	if len(related) > 0 {
		fmt.Fprintln(&content)
		fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Bold(true).Render("Insights:"))
		for _, in := range related {
			fmt.Fprintln(&content, export.Wrap(fmt.Sprintf("[%s] %s", strings.ToUpper(string(in.Importance)), in.Text), maxWidth))
		}
	}

	return clip(content.String(), maxWidth)
}

// clip cuts every line to width cells, keeping ANSI styling intact.
func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, width, "")
	}
	return strings.Join(lines, "\n")
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent() {
	if m.report == nil {
		return
	}
	item, ok := m.listView.GetSelectedItem()
	if !ok {
		m.detailViewport.SetContent("")
		return
	}
	// 1 char padding on each side
	maxWidth := m.detailViewport.Width - 2
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render(export.Truncate(selectedItem.Entry.Name, width-2, true))

		panel := m.styles.PanelStyle(m.detailFocused).
			Width(width - 2).
			Height(height).
			Render(m.detailViewport.View())

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, panel)
	}

	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	emptyStyle := m.styles.PanelStyle(false).
		Width(width - 2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true)

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, emptyStyle.Render("No metrics match"))
}
