package analyze

import (
	"fmt"
	"strings"

	"rapport-agent/src/contracts"
)

// Positivity component weights.
const (
	weightSentiment  = 0.40
	weightToxicity   = 0.35
	weightEngagement = 0.25

	// Below this many messages the trend is insufficient_data.
	minTrendMessages = 20
	// Half-to-half score change that counts as a trend.
	trendThreshold = 5.0
	// Score reported when no input metric is available.
	neutralHealth = 50.0
)

// PositivityComponents are the normalized inputs in [0,1]; nil when unavailable.
type PositivityComponents struct {
	Sentiment  *float64 `json:"sentiment,omitempty"`
	Toxicity   *float64 `json:"toxicity,omitempty"`
	Engagement *float64 `json:"engagement,omitempty"`
}

// PositivityResult is the composite health score.
type PositivityResult struct {
	Summary       string                   `json:"summary"`
	Score         float64                  `json:"score"`
	Level         contracts.HealthLevel    `json:"level"`
	LowConfidence bool                     `json:"low_confidence"`
	MissingInputs []contracts.ClassifierID `json:"missing_inputs"`
	Components    PositivityComponents     `json:"components"`
	Trend         contracts.Trend          `json:"trend"`
	FirstHalf     *float64                 `json:"first_half,omitempty"`
	SecondHalf    *float64                 `json:"second_half,omitempty"`
}

func (r *PositivityResult) MetricID() contracts.ClassifierID { return contracts.ClassifierPositivity }
func (r *PositivityResult) MetricSummary() string            { return r.Summary }

func (r *PositivityResult) Fields() []contracts.MetricField {
	missing := make([]string, len(r.MissingInputs))
	for i, id := range r.MissingInputs {
		missing[i] = string(id)
	}
	return []contracts.MetricField{
		field("score", fmtFloat(r.Score)),
		field("level", string(r.Level)),
		field("trend", string(r.Trend)),
		field("low_confidence", fmt.Sprintf("%t", r.LowConfidence)),
		field("missing_inputs", strings.Join(missing, ";")),
	}
}

// Positivity combines the sentiment, toxicity and engagement results into the
// health score. It reads Input.Results and never the raw messages, except to
// recompute the same components per half for the trend.
type Positivity struct{}

func (Positivity) ID() contracts.ClassifierID { return contracts.ClassifierPositivity }
func (Positivity) Name() string               { return "Positivity Index" }

func (Positivity) Analyze(in Input) (contracts.MetricResult, error) {
	res := &PositivityResult{MissingInputs: []contracts.ClassifierID{}}

	if r, ok := in.Results[contracts.ClassifierSentiment].(*SentimentResult); ok {
		s := (r.Score + 1) / 2
		res.Components.Sentiment = &s
	} else {
		res.MissingInputs = append(res.MissingInputs, contracts.ClassifierSentiment)
	}
	if r, ok := in.Results[contracts.ClassifierToxicity].(*ToxicityResult); ok {
		t := 1 - r.Score
		res.Components.Toxicity = &t
	} else {
		res.MissingInputs = append(res.MissingInputs, contracts.ClassifierToxicity)
	}
	if r, ok := in.Results[contracts.ClassifierEngagement].(*EngagementResult); ok {
		e := r.Average / 100
		res.Components.Engagement = &e
	} else {
		res.MissingInputs = append(res.MissingInputs, contracts.ClassifierEngagement)
	}
	res.LowConfidence = len(res.MissingInputs) > 0

	score, ok := combine(res.Components)
	if !ok {
		res.Score = neutralHealth
		res.Level = contracts.HealthUnknown
		res.Trend = contracts.TrendInsufficientData
		res.Summary = "Health could not be scored: sentiment, toxicity and engagement are all unavailable"
		return res, nil
	}
	res.Score = round(score, 2)
	res.Level = HealthLevelFor(res.Score)

	res.Trend = contracts.TrendInsufficientData
	if n := len(in.Messages); n >= minTrendMessages {
		first := halfComponents(in, in.Messages[:n/2], res.Components)
		second := halfComponents(in, in.Messages[n/2:], res.Components)
		a, _ := combine(first)
		b, _ := combine(second)
		a, b = round(a, 2), round(b, 2)
		res.FirstHalf, res.SecondHalf = &a, &b
		switch {
		case b-a >= trendThreshold:
			res.Trend = contracts.TrendImproving
		case a-b >= trendThreshold:
			res.Trend = contracts.TrendDeclining
		default:
			res.Trend = contracts.TrendStable
		}
	}

	res.Summary = fmt.Sprintf("Health %.0f/100 (%s), trend %s", res.Score, res.Level, res.Trend)
	if res.LowConfidence {
		res.Summary += fmt.Sprintf("; low confidence, missing %d input(s)", len(res.MissingInputs))
	}
	return res, nil
}

// combine applies the weighted formula, renormalizing over available components.
func combine(c PositivityComponents) (float64, bool) {
	var sum, weights float64
	if c.Sentiment != nil {
		sum += weightSentiment * *c.Sentiment
		weights += weightSentiment
	}
	if c.Toxicity != nil {
		sum += weightToxicity * *c.Toxicity
		weights += weightToxicity
	}
	if c.Engagement != nil {
		sum += weightEngagement * *c.Engagement
		weights += weightEngagement
	}
	if weights == 0 {
		return 0, false
	}
	return clamp(100*sum/weights, 0, 100), true
}

// halfComponents recomputes the available components over a message subset.
func halfComponents(in Input, msgs []contracts.CanonicalMessage, avail PositivityComponents) PositivityComponents {
	var out PositivityComponents
	if avail.Sentiment != nil {
		s := (meanPolarity(in, msgs) + 1) / 2
		out.Sentiment = &s
	}
	if avail.Toxicity != nil {
		scores := make([]float64, len(msgs))
		for i, m := range msgs {
			scores[i] = ScoreToxicity(m.Content)
		}
		t := 1 - mean(scores)
		out.Toxicity = &t
	}
	if avail.Engagement != nil {
		a, b := engagementFor(msgs)
		e := averageEngagement(a, b) / 100
		out.Engagement = &e
	}
	return out
}

// HealthLevelFor maps a 0..100 score onto the five health levels.
func HealthLevelFor(score float64) contracts.HealthLevel {
	switch {
	case score >= 80:
		return contracts.HealthExcellent
	case score >= 65:
		return contracts.HealthGood
	case score >= 45:
		return contracts.HealthModerate
	case score >= 25:
		return contracts.HealthPoor
	}
	return contracts.HealthToxic
}
