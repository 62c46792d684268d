package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/export"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 10

	nameWidth = 22
)

// Delegate renders metric items as table rows.
type Delegate struct {
	RankWidth int
	styles    *StyleConfig
}

// NewDelegate creates a new metric table delegate with default styles
func NewDelegate() Delegate {
	return NewDelegateWithStyles(DefaultStyles())
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{
		RankWidth: 2,
		styles:    styles,
	}
}

// SetColumnWidths sets the width of the rank column
func (d *Delegate) SetColumnWidths(maxRank int) {
	d.RankWidth = max(2, len(fmt.Sprintf("%d", maxRank)))
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	rankCol := fmt.Sprintf("%*s", d.RankWidth, "")
	if !entry.IsOverview() {
		rankCol = fmt.Sprintf("%*d", d.RankWidth, entry.Rank)
	}
	statusCol := "  "
	if entry.Absent() {
		statusCol = "--"
	}
	nameCol := export.TruncateAndPad(entry.Entry.Name, nameWidth, true)

	// Fixed columns: rank + status (2) + name + separators (9)
	fixedWidth := d.RankWidth + 2 + nameWidth + 9
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var snippet string
	if availableWidth > 0 {
		snippet = export.TruncateAndPad(entry.Summary(), availableWidth, true)
	}

	line := fmt.Sprintf("%s \u2502 %s \u2502 %s \u2502 %s", rankCol, statusCol, nameCol, snippet)

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if entry.Absent() {
		style = style.Faint(true)
	}
	if isSelected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprint(w, style.Render(line))
}
