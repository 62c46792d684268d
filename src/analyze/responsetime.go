package analyze

import (
	"fmt"
	"math"
	"time"

	"rapport-agent/src/contracts"
)

// PartyResponse summarizes how quickly a party answers.
type PartyResponse struct {
	Replies       int     `json:"replies"`
	MeanMinutes   float64 `json:"mean_minutes"`
	MedianMinutes float64 `json:"median_minutes"`
	MinMinutes    float64 `json:"min_minutes"`
	MaxMinutes    float64 `json:"max_minutes"`
	// Coefficient of variation of the reply gaps.
	Variation   float64 `json:"variation"`
	Consistency string  `json:"consistency"`
	Readiness   string  `json:"readiness"`
}

// ResponseTimeResult compares reply speed.
type ResponseTimeResult struct {
	Summary string        `json:"summary"`
	PartyA  PartyResponse `json:"party_a"`
	PartyB  PartyResponse `json:"party_b"`
	// Empty when either party never replied.
	FasterParty string `json:"faster_party,omitempty"`
	// How much faster the faster party's median is, relative to the slower one.
	PercentDifference float64              `json:"percent_difference"`
	Comparison        contracts.Comparison `json:"comparison"`
}

func (r *ResponseTimeResult) MetricID() contracts.ClassifierID { return contracts.ClassifierResponseTime }
func (r *ResponseTimeResult) MetricSummary() string            { return r.Summary }

func (r *ResponseTimeResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_median_minutes", fmtFloat(r.PartyA.MedianMinutes)),
		field("party_a_consistency", r.PartyA.Consistency),
		field("party_a_readiness", r.PartyA.Readiness),
		field("party_b_median_minutes", fmtFloat(r.PartyB.MedianMinutes)),
		field("party_b_consistency", r.PartyB.Consistency),
		field("party_b_readiness", r.PartyB.Readiness),
		field("faster_party", r.FasterParty),
		field("percent_difference", fmtFloat(r.PercentDifference)),
	}
}

// ResponseTime attributes each reply gap to the responder.
type ResponseTime struct{}

func (ResponseTime) ID() contracts.ClassifierID { return contracts.ClassifierResponseTime }
func (ResponseTime) Name() string               { return "Response Time" }

func (ResponseTime) Analyze(in Input) (contracts.MetricResult, error) {
	gaps := map[contracts.Party][]float64{}
	for _, r := range replies(in.Messages) {
		gaps[r.party] = append(gaps[r.party], r.gap.Minutes())
	}

	res := &ResponseTimeResult{
		PartyA: partyResponse(gaps[contracts.PartyA]),
		PartyB: partyResponse(gaps[contracts.PartyB]),
	}

	if res.PartyA.Replies == 0 || res.PartyB.Replies == 0 {
		res.Comparison = contracts.Comparison{
			Leader:         contracts.Balanced,
			Interpretation: "Not enough back-and-forth to compare reply speed",
		}
		res.Summary = res.Comparison.Interpretation
		return res, nil
	}

	a, b := res.PartyA.MedianMinutes, res.PartyB.MedianMinutes
	faster, fast, slow := contracts.PartyA, a, b
	if b < a {
		faster, fast, slow = contracts.PartyB, b, a
	}
	if slow > 0 {
		res.PercentDifference = round((slow-fast)/slow*100, 1)
	}

	if res.PercentDifference < 10 {
		res.Comparison = contracts.Comparison{
			Leader:         contracts.Balanced,
			Magnitude:      res.PercentDifference,
			Interpretation: "Both reply at a similar pace",
		}
	} else {
		res.FasterParty = string(faster)
		res.Comparison = contracts.Comparison{
			Leader:    string(faster),
			Magnitude: res.PercentDifference,
			Interpretation: fmt.Sprintf("%s replies %.0f%% faster than %s",
				in.name(faster), res.PercentDifference, in.name(faster.Other())),
		}
	}
	res.Summary = fmt.Sprintf("Median reply: %s %s, %s %s. %s",
		in.name(contracts.PartyA), humanMinutes(a), in.name(contracts.PartyB), humanMinutes(b), res.Comparison.Interpretation)
	return res, nil
}

func partyResponse(minutes []float64) PartyResponse {
	pr := PartyResponse{Replies: len(minutes), Consistency: "insufficient_data", Readiness: "unknown"}
	if len(minutes) == 0 {
		return pr
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range minutes {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	pr.MeanMinutes = round(mean(minutes), 2)
	pr.MedianMinutes = round(median(minutes), 2)
	pr.MinMinutes = round(lo, 2)
	pr.MaxMinutes = round(hi, 2)
	pr.Readiness = readiness(time.Duration(median(minutes) * float64(time.Minute)))

	if len(minutes) >= 2 {
		m := mean(minutes)
		if m > 0 {
			pr.Variation = round(stddev(minutes)/m, 3)
		}
		pr.Consistency = consistency(pr.Variation)
	}
	return pr
}

func consistency(cv float64) string {
	switch {
	case cv < 0.5:
		return "consistent"
	case cv < 1.0:
		return "variable"
	}
	return "erratic"
}

func readiness(median time.Duration) string {
	switch {
	case median < time.Minute:
		return "immediate"
	case median < 15*time.Minute:
		return "prompt"
	case median < 2*time.Hour:
		return "moderate"
	case median < 24*time.Hour:
		return "slow"
	}
	return "very_slow"
}

func humanMinutes(m float64) string {
	d := time.Duration(m * float64(time.Minute)).Round(time.Second)
	return d.String()
}
