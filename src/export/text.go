package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"rapport-agent/src/contracts"
)

// Text writes a sectioned plain-text report wrapped to width columns.
// Sections are Overview, Metrics, Insights and Recommendations.
func Text(w io.Writer, r *contracts.Report, width int) error {
	if width < 40 {
		width = 40
	}
	var b strings.Builder

	title := "RELATIONSHIP HEALTH REPORT"
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", VisualWidth(title)) + "\n")

	section(&b, "Overview")
	table(&b, overview(r), width)

	section(&b, "Metrics")
	var rows [][2]string
	for _, m := range OrderedMetrics(r) {
		if m.Result == nil {
			rows = append(rows, [2]string{m.Name, "Not available: " + m.Reason})
			continue
		}
		rows = append(rows, [2]string{m.Name, m.Result.MetricSummary()})
	}
	if len(rows) == 0 {
		b.WriteString("No metrics were computed.\n")
	}
	table(&b, rows, width)

	section(&b, "Insights")
	if len(r.Insights) == 0 {
		b.WriteString("No notable patterns.\n")
	}
	for _, in := range r.Insights {
		tag := "[" + strings.ToUpper(string(in.Importance)) + "] "
		hanging(&b, tag, in.Text, width)
	}

	section(&b, "Recommendations")
	if len(r.Recommendations) == 0 {
		b.WriteString("Nothing to recommend.\n")
	}
	for i, rec := range r.Recommendations {
		prefix := fmt.Sprintf("%d. ", i+1)
		hanging(&b, prefix, fmt.Sprintf("%s (%s priority)", rec.Action, rec.Priority), width)
		if rec.Details != "" {
			hanging(&b, strings.Repeat(" ", len(prefix)), rec.Details, width)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, name string) {
	b.WriteString("\n" + name + "\n" + strings.Repeat("-", VisualWidth(name)) + "\n")
}

func overview(r *contracts.Report) [][2]string {
	stats := r.SourceStats
	nameA := r.Personalization.NameFor(contracts.PartyA, orDefault(stats.PartyALabel, "Party A"))
	nameB := r.Personalization.NameFor(contracts.PartyB, orDefault(stats.PartyBLabel, "Party B"))

	messages := fmt.Sprintf("%d", stats.Messages)
	if stats.DroppedLines > 0 {
		messages += fmt.Sprintf(" (%d unreadable lines skipped)", stats.DroppedLines)
	}
	rows := [][2]string{
		{"Health score", fmt.Sprintf("%.1f / 100 (%s)", r.HealthScore, r.HealthLevel)},
		{"Trend", strings.ReplaceAll(string(r.Trend), "_", " ")},
		{"Parties", fmt.Sprintf("%s (%d messages), %s (%d messages)", nameA, stats.PartyAMessages, nameB, stats.PartyBMessages)},
		{"Messages", messages},
	}
	if !stats.FirstMessageAt.IsZero() {
		rows = append(rows, [2]string{"Span", fmt.Sprintf("%s to %s",
			stats.FirstMessageAt.Format("2006-01-02 15:04"), stats.LastMessageAt.Format("2006-01-02 15:04"))})
	}
	if goal := r.Personalization.AnalysisGoal; goal != "" {
		rows = append(rows, [2]string{"Goal", goal})
	}
	rows = append(rows, [2]string{"Generated", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")})
	return rows
}

// table writes label/value rows with the labels padded to one column and the
// values wrapped beside them.
func table(b *strings.Builder, rows [][2]string, width int) {
	labelWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, VisualWidth(row[0]))
	}
	labelWidth += 2
	for _, row := range rows {
		hanging(b, runewidth.FillRight(row[0], labelWidth), row[1], width)
	}
}

// hanging writes text after prefix, indenting continuation lines to line up
// with the first.
func hanging(b *strings.Builder, prefix, text string, width int) {
	indent := strings.Repeat(" ", VisualWidth(prefix))
	lines := SplitLines(Wrap(text, max(width-len(indent), 10)))
	if len(lines) == 0 {
		lines = []string{""}
	}
	for i, line := range lines {
		if i == 0 {
			b.WriteString(prefix)
		} else {
			b.WriteString(indent)
		}
		b.WriteString(line + "\n")
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
