// Package mcp exposes conversation analysis as MCP tools over stdio.
package mcp

import (
	"time"

	"rapport-agent/src/contracts"
)

// Manifest is the compact view of a report returned by the tools.
// Full metric fields are fetched with get_metric_details.
type Manifest struct {
	ReportID    string                `json:"report_id"`
	GeneratedAt time.Time             `json:"generated_at"`
	HealthScore float64               `json:"health_score"`
	HealthLevel contracts.HealthLevel `json:"health_level"`
	Trend       contracts.Trend       `json:"trend"`
	Messages    int                   `json:"messages"`
	PartyA      string                `json:"party_a"`
	PartyB      string                `json:"party_b,omitempty"`

	Metrics         []MetricSummary            `json:"metrics"`
	Insights        []contracts.Insight        `json:"insights"`
	Recommendations []contracts.Recommendation `json:"recommendations"`
	// Insights left out by the per-importance limits.
	OmittedInsights int `json:"omitted_insights,omitempty"`
}

// MetricSummary is one line per classifier, in run order.
type MetricSummary struct {
	ID      contracts.ClassifierID `json:"id"`
	Summary string                 `json:"summary,omitempty"`
	Absent  string                 `json:"absent,omitempty"`
}

// MetricDetails is the drill-down for a single metric.
type MetricDetails struct {
	ReportID string                 `json:"report_id"`
	ID       contracts.ClassifierID `json:"id"`
	Summary  string                 `json:"summary"`
	Fields   []Field                `json:"fields"`
}

// Field is one named value of a metric.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// JobState is the get_analysis_status response.
type JobState struct {
	JobID           string              `json:"job_id"`
	Status          contracts.JobStatus `json:"status"`
	ProgressPercent int                 `json:"progress_percent"`
	ProgressMessage string              `json:"progress_message"`
	Error           string              `json:"error,omitempty"`
	Report          *Manifest           `json:"report,omitempty"`
}
