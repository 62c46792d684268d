// Package export renders reports as JSON, CSV or a plain-text document.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// DefaultWidth is the line width of text exports.
const DefaultWidth = 80

// ParseFormat accepts json, csv, text (or txt). Empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected json, csv or text)", s)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	}
	return "application/json"
}

// Extension is the file suffix for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Write renders r in format f.
func Write(w io.Writer, r *contracts.Report, f Format) error {
	switch f {
	case FormatJSON:
		return JSON(w, r)
	case FormatCSV:
		return CSV(w, r)
	case FormatText:
		return Text(w, r, DefaultWidth)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// JSON writes the report indented. Struct fields keep declaration order and
// map keys are sorted, so equal reports produce identical bytes.
func JSON(w io.Writer, r *contracts.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// MetricEntry is one classifier slot in run order.
type MetricEntry struct {
	ID     contracts.ClassifierID
	Name   string
	Result contracts.MetricResult // nil when absent
	Reason string
}

// OrderedMetrics lists every classifier in run order, followed by any
// unrecognized metrics sorted by ID.
func OrderedMetrics(r *contracts.Report) []MetricEntry {
	var out []MetricEntry
	known := make(map[contracts.ClassifierID]bool)
	for _, c := range analyze.Default() {
		id := c.ID()
		known[id] = true
		res, ok := r.Metrics[id]
		if !ok && !r.IsAbsent(id) {
			continue
		}
		out = append(out, MetricEntry{ID: id, Name: c.Name(), Result: res, Reason: r.Absent[id]})
	}

	var extra []contracts.ClassifierID
	for id := range r.Metrics {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, id := range extra {
		out = append(out, MetricEntry{ID: id, Name: string(id), Result: r.Metrics[id]})
	}
	return out
}

// CSV writes one metric,field,value row per value. Report-level values come
// first under the "report" metric, then each classifier in run order.
func CSV(w io.Writer, r *contracts.Report) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"metric", "field", "value"},
		{"report", "id", r.ID},
		{"report", "generated_at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"report", "health_score", strconv.FormatFloat(r.HealthScore, 'f', 2, 64)},
		{"report", "health_level", string(r.HealthLevel)},
		{"report", "trend", string(r.Trend)},
		{"report", "messages", strconv.Itoa(r.SourceStats.Messages)},
	}

	for _, m := range OrderedMetrics(r) {
		id := string(m.ID)
		if m.Result == nil {
			rows = append(rows, []string{id, "absent", m.Reason})
			continue
		}
		rows = append(rows, []string{id, "summary", m.Result.MetricSummary()})
		if fl, ok := m.Result.(contracts.FieldLister); ok {
			for _, f := range fl.Fields() {
				rows = append(rows, []string{id, f.Name, f.Value})
			}
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
