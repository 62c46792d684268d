package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"rapport-agent/src/contracts"
)

// View manages the list of metric items.
type View struct {
	list     list.Model
	items    []Item
	delegate *Delegate
}

// NewView creates a new metric list view
func NewView(styles *StyleConfig) View {
	delegate := NewDelegateWithStyles(styles)
	l := list.New([]list.Item{}, &delegate, 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return View{
		list:     l,
		items:    []Item{},
		delegate: &delegate,
	}
}

// Update handles list updates
func (v View) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// SetSize sets the list dimensions
func (v *View) SetSize(width, height int) {
	v.list.SetSize(width, height)
}

// SetItems replaces the list items. The selected metric stays selected when
// it is still in the list; otherwise the first row is.
func (v *View) SetItems(items []Item) {
	selected, hadSelection := v.GetSelectedItem()
	v.items = items

	maxRank := 0
	for _, item := range items {
		maxRank = max(maxRank, item.Rank)
	}
	v.delegate.SetColumnWidths(maxRank)

	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}
	v.list.SetItems(listItems)
	v.list.Select(0)
	if hadSelection {
		v.SelectID(selected.Entry.ID)
	}
}

// SelectID moves the cursor to the item for id ("" is the overview row).
func (v *View) SelectID(id contracts.ClassifierID) bool {
	for i, item := range v.items {
		if item.Entry.ID == id {
			v.list.Select(i)
			return true
		}
	}
	return false
}

// Items returns the items currently shown.
func (v View) Items() []Item {
	return v.items
}

// GetSelectedItem returns the currently selected item
func (v View) GetSelectedItem() (Item, bool) {
	if len(v.list.Items()) == 0 {
		return Item{}, false
	}
	item, ok := v.list.SelectedItem().(Item)
	return item, ok
}

// Render returns the string representation of the view
func (v View) Render() string {
	return v.list.View()
}

// GetDelegate returns the delegate for accessing column widths
func (v View) GetDelegate() *Delegate {
	return v.delegate
}
