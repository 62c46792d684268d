package contracts

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ClassifierID identifies one behavioral metric.
type ClassifierID string

const (
	ClassifierSentiment             ClassifierID = "sentiment"
	ClassifierSentimentComparison   ClassifierID = "sentiment_comparison"
	ClassifierToxicity              ClassifierID = "toxicity"
	ClassifierEngagement            ClassifierID = "engagement"
	ClassifierDoubleTexting         ClassifierID = "double_texting"
	ClassifierResponseTime          ClassifierID = "response_time"
	ClassifierApology               ClassifierID = "apology"
	ClassifierPositivity            ClassifierID = "positivity"
	ClassifierWeekdayActivity       ClassifierID = "weekday_activity"
	ClassifierCallbackConsistency   ClassifierID = "callback_consistency"
	ClassifierStreakTiming          ClassifierID = "streak_timing"
	ClassifierCommunicationPatterns ClassifierID = "communication_patterns"
)

// MetricResult is the output of one classifier.
// Concrete result types live in the analyze package.
type MetricResult interface {
	MetricID() ClassifierID
	MetricSummary() string
}

// MetricField is a single named value used for flat exports.
type MetricField struct {
	Name  string
	Value string
}

// FieldLister is implemented by results that can be flattened into fixed rows.
type FieldLister interface {
	Fields() []MetricField
}

// Comparison states which party scores higher on a metric.
type Comparison struct {
	// "A", "B" or "balanced".
	Leader         string  `json:"leader"`
	Magnitude      float64 `json:"magnitude"`
	Interpretation string  `json:"interpretation"`
}

// Balanced is the Comparison leader value when neither party stands out.
const Balanced = "balanced"

// RawMetric holds a metric whose concrete type was not registered when decoding.
type RawMetric struct {
	ID      ClassifierID    `json:"-"`
	Summary string          `json:"summary"`
	Body    json.RawMessage `json:"-"`
}

func (r *RawMetric) MetricID() ClassifierID { return r.ID }
func (r *RawMetric) MetricSummary() string  { return r.Summary }

// MarshalJSON re-emits the original body untouched.
func (r *RawMetric) MarshalJSON() ([]byte, error) {
	if len(r.Body) > 0 {
		return r.Body, nil
	}
	return json.Marshal(struct {
		Summary string `json:"summary"`
	}{r.Summary})
}

var (
	metricMu        sync.RWMutex
	metricFactories = make(map[ClassifierID]func() MetricResult)
)

// RegisterMetric makes a concrete result type decodable from JSON.
// It is called from the init functions of packages that define results.
func RegisterMetric(id ClassifierID, factory func() MetricResult) {
	metricMu.Lock()
	defer metricMu.Unlock()
	metricFactories[id] = factory
}

// Metrics maps each classifier that completed to its result.
type Metrics map[ClassifierID]MetricResult

// UnmarshalJSON decodes each entry into its registered concrete type,
// falling back to RawMetric for unknown classifiers.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw map[ClassifierID]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Metrics, len(raw))
	metricMu.RLock()
	defer metricMu.RUnlock()
	for id, body := range raw {
		factory, ok := metricFactories[id]
		if !ok {
			rm := &RawMetric{ID: id, Body: append(json.RawMessage(nil), body...)}
			if err := json.Unmarshal(body, rm); err != nil {
				return fmt.Errorf("failed to decode metric %s: %w", id, err)
			}
			out[id] = rm
			continue
		}
		v := factory()
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("failed to decode metric %s: %w", id, err)
		}
		out[id] = v
	}
	*m = out
	return nil
}

// HealthLevel is the five-level label derived from the health score.
type HealthLevel string

const (
	HealthExcellent HealthLevel = "excellent"
	HealthGood      HealthLevel = "good"
	HealthModerate  HealthLevel = "moderate"
	HealthPoor      HealthLevel = "poor"
	HealthToxic     HealthLevel = "toxic"
	HealthUnknown   HealthLevel = "unknown"
)

// Trend compares the first and second half of the timeline.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendStable           Trend = "stable"
	TrendDeclining        Trend = "declining"
	TrendInsufficientData Trend = "insufficient_data"
)

// Importance ranks insights.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Insight is an observation derived from a completed metric.
type Insight struct {
	Category   string     `json:"category"`
	Text       string     `json:"text"`
	Importance Importance `json:"importance"`
}

// Recommendation is an action drawn from the fixed catalog.
type Recommendation struct {
	Priority Importance `json:"priority"`
	Action   string     `json:"action"`
	Details  string     `json:"details"`
}

// SourceStats describes the input a report was computed from.
type SourceStats struct {
	Format         Format    `json:"format"`
	Bytes          int64     `json:"bytes"`
	Lines          int       `json:"lines"`
	DroppedLines   int       `json:"dropped_lines"`
	Messages       int       `json:"messages"`
	PartyALabel    string    `json:"party_a_label"`
	PartyBLabel    string    `json:"party_b_label,omitempty"`
	PartyAMessages int       `json:"party_a_messages"`
	PartyBMessages int       `json:"party_b_messages"`
	FirstMessageAt time.Time `json:"first_message_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// Report is the synthesized output of one analysis run.
type Report struct {
	ID          string      `json:"id"`
	GeneratedAt time.Time   `json:"generated_at"`
	SourceStats SourceStats `json:"source_stats"`
	// Always present and within [0,100], even when metrics are absent.
	HealthScore float64     `json:"health_score"`
	HealthLevel HealthLevel `json:"health_level"`
	Trend       Trend       `json:"trend"`
	Metrics     Metrics     `json:"metrics"`
	// Classifiers that did not produce a result, with the reason.
	Absent          map[ClassifierID]string `json:"absent"`
	Insights        []Insight               `json:"insights"`
	Recommendations []Recommendation        `json:"recommendations"`
	Personalization Personalization         `json:"personalization"`
}

// Metric returns the result for id, or nil and false when it is absent.
func (r *Report) Metric(id ClassifierID) (MetricResult, bool) {
	m, ok := r.Metrics[id]
	return m, ok
}

// IsAbsent reports whether the classifier was explicitly marked absent.
func (r *Report) IsAbsent(id ClassifierID) bool {
	_, ok := r.Absent[id]
	return ok
}
