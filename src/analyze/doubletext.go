package analyze

import (
	"fmt"

	"rapport-agent/src/contracts"
)

// PartyStreaks counts runs of consecutive messages from one party.
type PartyStreaks struct {
	Doubles  int `json:"doubles"`
	Triples  int `json:"triples"`
	QuadPlus int `json:"quad_plus"`
	// Longest run, including runs of one.
	LongestStreak int `json:"longest_streak"`
	// Mean length of runs of two or more.
	AverageStreak float64 `json:"average_streak"`
	// Messages sent without an intervening reply.
	ExtraMessages   int     `json:"extra_messages"`
	InvestmentScore float64 `json:"investment_score"`
}

// DoubleTextingResult reports who keeps texting without replies.
type DoubleTextingResult struct {
	Summary    string               `json:"summary"`
	PartyA     PartyStreaks         `json:"party_a"`
	PartyB     PartyStreaks         `json:"party_b"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *DoubleTextingResult) MetricID() contracts.ClassifierID {
	return contracts.ClassifierDoubleTexting
}
func (r *DoubleTextingResult) MetricSummary() string { return r.Summary }

func (r *DoubleTextingResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_doubles", fmtInt(r.PartyA.Doubles)),
		field("party_a_triples", fmtInt(r.PartyA.Triples)),
		field("party_a_quad_plus", fmtInt(r.PartyA.QuadPlus)),
		field("party_a_longest_streak", fmtInt(r.PartyA.LongestStreak)),
		field("party_a_investment", fmtFloat(r.PartyA.InvestmentScore)),
		field("party_b_doubles", fmtInt(r.PartyB.Doubles)),
		field("party_b_triples", fmtInt(r.PartyB.Triples)),
		field("party_b_quad_plus", fmtInt(r.PartyB.QuadPlus)),
		field("party_b_longest_streak", fmtInt(r.PartyB.LongestStreak)),
		field("party_b_investment", fmtFloat(r.PartyB.InvestmentScore)),
	}
}

// DoubleTexting scans consecutive same-party runs.
type DoubleTexting struct{}

func (DoubleTexting) ID() contracts.ClassifierID { return contracts.ClassifierDoubleTexting }
func (DoubleTexting) Name() string               { return "Double Texting" }

func (DoubleTexting) Analyze(in Input) (contracts.MetricResult, error) {
	stats := map[contracts.Party]*PartyStreaks{
		contracts.PartyA: {},
		contracts.PartyB: {},
	}
	multi := map[contracts.Party][]float64{}
	total := map[contracts.Party]int{}

	record := func(p contracts.Party, n int) {
		s := stats[p]
		if n > s.LongestStreak {
			s.LongestStreak = n
		}
		switch {
		case n == 2:
			s.Doubles++
		case n == 3:
			s.Triples++
		case n >= 4:
			s.QuadPlus++
		}
		if n >= 2 {
			multi[p] = append(multi[p], float64(n))
			s.ExtraMessages += n - 1
		}
	}

	for i := 0; i < len(in.Messages); {
		p := in.Messages[i].Party
		j := i
		for j < len(in.Messages) && in.Messages[j].Party == p {
			j++
		}
		record(p, j-i)
		total[p] += j - i
		i = j
	}

	for p, s := range stats {
		s.AverageStreak = round(mean(multi[p]), 2)
		s.InvestmentScore = round(investment(s, total[p]), 2)
	}

	res := &DoubleTextingResult{PartyA: *stats[contracts.PartyA], PartyB: *stats[contracts.PartyB]}
	res.Comparison = compare(in, res.PartyA.InvestmentScore, res.PartyB.InvestmentScore, 5, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s sends more messages in a row than %s", leader, other)
	})
	res.Summary = fmt.Sprintf("%s: %d double, %d triple, %d quad+ (longest %d). %s: %d double, %d triple, %d quad+ (longest %d)",
		in.name(contracts.PartyA), res.PartyA.Doubles, res.PartyA.Triples, res.PartyA.QuadPlus, res.PartyA.LongestStreak,
		in.name(contracts.PartyB), res.PartyB.Doubles, res.PartyB.Triples, res.PartyB.QuadPlus, res.PartyB.LongestStreak)
	return res, nil
}

// investment blends the share of unanswered follow-ups with the longest run.
// A party whose every message is a follow-up in a long run scores 100.
func investment(s *PartyStreaks, total int) float64 {
	if total == 0 {
		return 0
	}
	share := ratio(s.ExtraMessages, total)
	length := clamp(float64(s.LongestStreak-1)/5, 0, 1)
	return 100 * (0.6*clamp(share*2, 0, 1) + 0.4*length)
}
