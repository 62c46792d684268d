package analyze

import (
	"fmt"

	"rapport-agent/src/contracts"
)

const (
	// Per-message and overall label threshold.
	sentimentThreshold = 0.15
	// Minimum party score gap before one side is called more positive.
	sentimentLeadGap = 0.05
)

// SentimentResult is the conversation-wide sentiment.
type SentimentResult struct {
	Summary  string  `json:"summary"`
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Messages int     `json:"messages"`
}

func (r *SentimentResult) MetricID() contracts.ClassifierID { return contracts.ClassifierSentiment }
func (r *SentimentResult) MetricSummary() string            { return r.Summary }

func (r *SentimentResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("score", fmtFloat(r.Score)),
		field("label", r.Label),
		field("positive", fmtInt(r.Positive)),
		field("negative", fmtInt(r.Negative)),
		field("neutral", fmtInt(r.Neutral)),
	}
}

// Sentiment scores every message and averages the polarity.
type Sentiment struct{}

func (Sentiment) ID() contracts.ClassifierID { return contracts.ClassifierSentiment }
func (Sentiment) Name() string               { return "Sentiment" }

func (Sentiment) Analyze(in Input) (contracts.MetricResult, error) {
	scores := make([]float64, len(in.Messages))
	res := &SentimentResult{Messages: len(in.Messages)}
	for i, m := range in.Messages {
		p := in.polarity(m)
		scores[i] = p
		switch sentimentLabel(p) {
		case "positive":
			res.Positive++
		case "negative":
			res.Negative++
		default:
			res.Neutral++
		}
	}
	res.Score = round(mean(scores), 4)
	res.Label = sentimentLabel(res.Score)
	res.Summary = fmt.Sprintf("Overall sentiment is %s (%.2f): %d positive, %d negative, %d neutral messages",
		res.Label, res.Score, res.Positive, res.Negative, res.Neutral)
	return res, nil
}

func sentimentLabel(score float64) string {
	switch {
	case score >= sentimentThreshold:
		return "positive"
	case score <= -sentimentThreshold:
		return "negative"
	}
	return "neutral"
}

// meanPolarity is the sentiment score of a message subset.
func meanPolarity(in Input, msgs []contracts.CanonicalMessage) float64 {
	scores := make([]float64, len(msgs))
	for i, m := range msgs {
		scores[i] = in.polarity(m)
	}
	return mean(scores)
}

// PartySentiment is one party's share of the sentiment picture.
type PartySentiment struct {
	Score    float64 `json:"score"`
	Label    string  `json:"label"`
	Messages int     `json:"messages"`
}

// SentimentComparisonResult splits sentiment by author.
type SentimentComparisonResult struct {
	Summary    string               `json:"summary"`
	PartyA     PartySentiment       `json:"party_a"`
	PartyB     PartySentiment       `json:"party_b"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *SentimentComparisonResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierSentimentComparison
}
func (r *SentimentComparisonResult) MetricSummary() string { return r.Summary }

func (r *SentimentComparisonResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_score", fmtFloat(r.PartyA.Score)),
		field("party_b_score", fmtFloat(r.PartyB.Score)),
		field("leader", r.Comparison.Leader),
		field("gap", fmtFloat(r.Comparison.Magnitude)),
	}
}

// SentimentComparison compares the two parties' average polarity.
type SentimentComparison struct{}

func (SentimentComparison) ID() contracts.ClassifierID {
	return contracts.ClassifierSentimentComparison
}
func (SentimentComparison) Name() string { return "Sentiment Comparison" }

func (SentimentComparison) Analyze(in Input) (contracts.MetricResult, error) {
	parts := byParty(in.Messages)
	party := func(p contracts.Party) PartySentiment {
		msgs := parts[p]
		s := round(meanPolarity(in, msgs), 4)
		return PartySentiment{Score: s, Label: sentimentLabel(s), Messages: len(msgs)}
	}

	res := &SentimentComparisonResult{PartyA: party(contracts.PartyA), PartyB: party(contracts.PartyB)}
	res.Comparison = compare(in, res.PartyA.Score, res.PartyB.Score, sentimentLeadGap, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s writes more positively than %s (gap %.2f)", leader, other, gap)
	})
	res.Summary = fmt.Sprintf("%s %.2f vs %s %.2f: %s",
		in.name(contracts.PartyA), res.PartyA.Score, in.name(contracts.PartyB), res.PartyB.Score, res.Comparison.Interpretation)
	return res, nil
}
