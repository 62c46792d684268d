package analyze

import (
	"fmt"
	"strings"

	"rapport-agent/src/contracts"
)

// Night-owl hours are [nightStart, nightEnd].
const (
	nightStart = 0
	nightEnd   = 5
)

// PartyPatterns is one party's writing habits.
type PartyPatterns struct {
	Messages      int     `json:"messages"`
	Hours         [24]int `json:"hours"`
	PeakHour      int     `json:"peak_hour"`
	NightOwlShare float64 `json:"night_owl_share"`
	AvgWords      float64 `json:"avg_words"`
	QuestionRatio float64 `json:"question_ratio"`
}

// CommunicationPatternsResult compares time-of-day and verbosity habits.
type CommunicationPatternsResult struct {
	Summary    string               `json:"summary"`
	PartyA     PartyPatterns        `json:"party_a"`
	PartyB     PartyPatterns        `json:"party_b"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *CommunicationPatternsResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierCommunicationPatterns
}
func (r *CommunicationPatternsResult) MetricSummary() string { return r.Summary }

func (r *CommunicationPatternsResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_peak_hour", fmtInt(r.PartyA.PeakHour)),
		field("party_a_night_owl_share", fmtFloat(r.PartyA.NightOwlShare)),
		field("party_a_avg_words", fmtFloat(r.PartyA.AvgWords)),
		field("party_b_peak_hour", fmtInt(r.PartyB.PeakHour)),
		field("party_b_night_owl_share", fmtFloat(r.PartyB.NightOwlShare)),
		field("party_b_avg_words", fmtFloat(r.PartyB.AvgWords)),
	}
}

// CommunicationPatterns builds hour-of-day histograms and verbosity stats.
type CommunicationPatterns struct{}

func (CommunicationPatterns) ID() contracts.ClassifierID {
	return contracts.ClassifierCommunicationPatterns
}
func (CommunicationPatterns) Name() string { return "Communication Patterns" }

func (CommunicationPatterns) Analyze(in Input) (contracts.MetricResult, error) {
	parts := byParty(in.Messages)
	res := &CommunicationPatternsResult{
		PartyA: partyPatterns(parts[contracts.PartyA]),
		PartyB: partyPatterns(parts[contracts.PartyB]),
	}

	// Verbosity leads only when one side writes 20% more words per message.
	a, b := res.PartyA.AvgWords, res.PartyB.AvgWords
	minGap := 0.2 * max(a, b)
	res.Comparison = compare(in, a, b, minGap, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s writes longer messages than %s (+%.1f words)", leader, other, gap)
	})
	res.Summary = fmt.Sprintf("Peak hours: %s %02d:00, %s %02d:00. %s",
		in.name(contracts.PartyA), res.PartyA.PeakHour, in.name(contracts.PartyB), res.PartyB.PeakHour, res.Comparison.Interpretation)
	return res, nil
}

func partyPatterns(msgs []contracts.CanonicalMessage) PartyPatterns {
	pp := PartyPatterns{Messages: len(msgs)}
	if len(msgs) == 0 {
		return pp
	}
	var words, questions, night int
	for _, m := range msgs {
		h := m.Timestamp.Hour()
		pp.Hours[h]++
		if h >= nightStart && h <= nightEnd {
			night++
		}
		words += len(strings.Fields(m.Content))
		if strings.Contains(m.Content, "?") {
			questions++
		}
	}
	for h := 1; h < 24; h++ {
		if pp.Hours[h] > pp.Hours[pp.PeakHour] {
			pp.PeakHour = h
		}
	}
	pp.NightOwlShare = round(ratio(night, len(msgs)), 4)
	pp.AvgWords = round(float64(words)/float64(len(msgs)), 2)
	pp.QuestionRatio = round(ratio(questions, len(msgs)), 4)
	return pp
}
