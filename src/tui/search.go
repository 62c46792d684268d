package tui

import (
	"github.com/sahilm/fuzzy"
)

// itemSource adapts items to fuzzy.Source.
type itemSource []Item

func (s itemSource) String(i int) string { return s[i].FilterValue() }
func (s itemSource) Len() int            { return len(s) }

// filterItems applies the status filter, then ranks the rest by fuzzy match
// against query. The status filter never hides the overview row.
func filterItems(items []Item, filter, query string) []Item {
	var filtered []Item
	for _, item := range items {
		switch {
		case item.IsOverview():
		case filter == FilterComputed && item.Absent():
			continue
		case filter == FilterAbsent && !item.Absent():
			continue
		}
		filtered = append(filtered, item)
	}

	if query == "" {
		return filtered
	}
	matches := fuzzy.FindFrom(query, itemSource(filtered))
	result := make([]Item, 0, len(matches))
	for _, match := range matches {
		result = append(result, filtered[match.Index])
	}
	return result
}

// applyFilter refreshes the list from the header filter and search query.
func (m *MainModel) applyFilter() {
	m.listView.SetItems(filterItems(m.items, m.header.GetFilter(), m.searchQuery))
	m.updateDetailContent()
}
