package tui

import (
	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
)

// Item is one row of the metric list. The first row is the report overview,
// which has no metric attached.
type Item struct {
	Entry export.MetricEntry
	Rank  int
}

// overviewItem is the list row that shows the whole report.
func overviewItem() Item {
	return Item{Entry: export.MetricEntry{Name: "Overview"}}
}

// IsOverview reports whether the item is the overview row.
func (i Item) IsOverview() bool { return i.Entry.ID == "" }

// Absent reports whether the metric could not be computed.
func (i Item) Absent() bool { return !i.IsOverview() && i.Entry.Result == nil }

// Summary returns the one-line text shown next to the name.
func (i Item) Summary() string {
	switch {
	case i.IsOverview():
		return "Score, insights and recommendations"
	case i.Absent():
		return "Not available: " + i.Entry.Reason
	}
	return i.Entry.Result.MetricSummary()
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Entry.Name + " " + i.Summary() }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Entry.Name }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Summary() }

// itemsFor builds the list rows for a report in run order.
func itemsFor(r *contracts.Report) []Item {
	items := []Item{overviewItem()}
	for i, e := range export.OrderedMetrics(r) {
		items = append(items, Item{Entry: e, Rank: i + 1})
	}
	return items
}
