package mcp

import (
	"rapport-agent/src/contracts"
	"rapport-agent/src/export"
	"rapport-agent/src/history"
	"rapport-agent/src/sanitize"
)

// Default insight limits per importance.
// High-importance insights are kept generously; lower ones are trimmed to
// keep the tool output small.
const (
	DefaultHighLimit   = 10
	DefaultMediumLimit = 5
	DefaultLowLimit    = 3
)

// maxSummaryWidth caps metric summaries in the manifest.
const maxSummaryWidth = 160

// insightLimits returns per-importance limits. A caller limit other than the
// default scales the medium and low limits down proportionally.
func insightLimits(limit int) map[contracts.Importance]int {
	limits := map[contracts.Importance]int{
		contracts.ImportanceHigh:   DefaultHighLimit,
		contracts.ImportanceMedium: DefaultMediumLimit,
		contracts.ImportanceLow:    DefaultLowLimit,
	}
	if limit > 0 && limit != DefaultHighLimit {
		limits[contracts.ImportanceHigh] = limit
		limits[contracts.ImportanceMedium] = max(1, limit/2)
		limits[contracts.ImportanceLow] = max(1, limit/3)
	}
	return limits
}

// ToManifest converts a report into its compact tool form.
// Insights keep their ranked order; duplicates and anything past the
// per-importance limit are dropped and counted in OmittedInsights.
func ToManifest(r *contracts.Report, limit int) Manifest {
	sum := history.Summarize(r)
	m := Manifest{
		ReportID:        r.ID,
		GeneratedAt:     r.GeneratedAt,
		HealthScore:     r.HealthScore,
		HealthLevel:     r.HealthLevel,
		Trend:           r.Trend,
		Messages:        r.SourceStats.Messages,
		PartyA:          sum.PartyA,
		PartyB:          sum.PartyB,
		Metrics:         []MetricSummary{},
		Insights:        []contracts.Insight{},
		Recommendations: r.Recommendations,
	}
	if m.Recommendations == nil {
		m.Recommendations = []contracts.Recommendation{}
	}

	for _, e := range export.OrderedMetrics(r) {
		if e.Result == nil {
			m.Metrics = append(m.Metrics, MetricSummary{ID: e.ID, Absent: e.Reason})
			continue
		}
		m.Metrics = append(m.Metrics, MetricSummary{ID: e.ID, Summary: compact(e.Result.MetricSummary())})
	}

	limits := insightLimits(limit)
	counts := make(map[contracts.Importance]int)
	seen := make(map[string]bool)
	for _, in := range r.Insights {
		if seen[in.Text] {
			continue
		}
		seen[in.Text] = true

		if counts[in.Importance] >= limits[in.Importance] {
			m.OmittedInsights++
			continue
		}
		counts[in.Importance]++
		m.Insights = append(m.Insights, in)
	}
	return m
}

// Details returns every field of one metric.
func Details(r *contracts.Report, id contracts.ClassifierID) (MetricDetails, bool) {
	res, ok := r.Metric(id)
	if !ok {
		return MetricDetails{}, false
	}
	d := MetricDetails{
		ReportID: r.ID,
		ID:       id,
		Summary:  sanitize.Clean(res.MetricSummary()),
		Fields:   []Field{},
	}
	if fl, ok := res.(contracts.FieldLister); ok {
		for _, f := range fl.Fields() {
			d.Fields = append(d.Fields, Field{Name: f.Name, Value: f.Value})
		}
	}
	return d, true
}

func compact(s string) string {
	return export.Truncate(sanitize.Clean(s), maxSummaryWidth, true)
}
