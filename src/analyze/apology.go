package analyze

import (
	"fmt"
	"regexp"
	"time"

	"rapport-agent/src/contracts"
)

var (
	explicitApology = regexp.MustCompile(`(?i)\b(?:sorry|so+rr+y|i apologi[sz]e|apologies|my fault|forgive me)\b`)
	softApology     = regexp.MustCompile(`(?i)\b(?:my bad|oops|whoops|didn[\x{2019}']?t mean|did not mean|i was wrong)\b`)
)

const (
	tensionToxicity = 0.3
	tensionPolarity = -0.4
	// An apology counts as reconciled when both parties keep talking within this window.
	reconciliationWindow = 24 * time.Hour
	// Messages each party must send inside the window.
	reconciliationMessages = 2
)

// PartyApologies counts one party's apologies.
type PartyApologies struct {
	Explicit int `json:"explicit"`
	Soft     int `json:"soft"`
	Total    int `json:"total"`
	// Tension windows in which this party apologized first.
	FirstAfterTension int `json:"first_after_tension"`
}

// ApologyResult describes who apologizes and whether it helps.
type ApologyResult struct {
	Summary        string         `json:"summary"`
	PartyA         PartyApologies `json:"party_a"`
	PartyB         PartyApologies `json:"party_b"`
	TensionWindows int            `json:"tension_windows"`
	// Party A's share of apologies, 0..100. 50 means equal.
	BalanceScore       float64              `json:"balance_score"`
	Reconciliations    int                  `json:"reconciliations"`
	ReconciliationRate float64              `json:"reconciliation_rate"`
	Comparison         contracts.Comparison `json:"comparison"`
}

func (r *ApologyResult) MetricID() contracts.ClassifierID { return contracts.ClassifierApology }
func (r *ApologyResult) MetricSummary() string            { return r.Summary }

func (r *ApologyResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_total", fmtInt(r.PartyA.Total)),
		field("party_b_total", fmtInt(r.PartyB.Total)),
		field("tension_windows", fmtInt(r.TensionWindows)),
		field("balance_score", fmtFloat(r.BalanceScore)),
		field("reconciliation_rate", fmtFloat(r.ReconciliationRate)),
	}
}

// Apology detects explicit and soft apologies and relates them to tension.
type Apology struct{}

func (Apology) ID() contracts.ClassifierID { return contracts.ClassifierApology }
func (Apology) Name() string               { return "Apology Patterns" }

func (Apology) Analyze(in Input) (contracts.MetricResult, error) {
	stats := map[contracts.Party]*PartyApologies{contracts.PartyA: {}, contracts.PartyB: {}}
	var apologies []int

	for i, m := range in.Messages {
		kind := apologyKind(m.Content)
		if kind == "" {
			continue
		}
		s := stats[m.Party]
		if kind == "explicit" {
			s.Explicit++
		} else {
			s.Soft++
		}
		s.Total++
		apologies = append(apologies, i)
	}

	res := &ApologyResult{}

	// Each tension opens a window that the next apology closes.
	next := 0
	for i := 0; i < len(in.Messages); i++ {
		if !isTension(in, in.Messages[i]) {
			continue
		}
		res.TensionWindows++
		for next < len(apologies) && apologies[next] <= i {
			next++
		}
		if next == len(apologies) {
			break
		}
		first := apologies[next]
		stats[in.Messages[first].Party].FirstAfterTension++
		i = first
		next++
	}

	for _, idx := range apologies {
		if reconciled(in.Messages, idx) {
			res.Reconciliations++
		}
	}
	res.ReconciliationRate = round(ratio(res.Reconciliations, len(apologies)), 3)

	res.PartyA, res.PartyB = *stats[contracts.PartyA], *stats[contracts.PartyB]
	total := res.PartyA.Total + res.PartyB.Total
	res.BalanceScore = 50
	if total > 0 {
		res.BalanceScore = round(100*float64(res.PartyA.Total)/float64(total), 1)
	}

	res.Comparison = compare(in, float64(res.PartyA.Total), float64(res.PartyB.Total), 0, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s apologizes more often than %s", leader, other)
	})
	res.Summary = fmt.Sprintf("%d apologies (%s %d, %s %d) across %d tense moments; balance %.0f/100",
		total, in.name(contracts.PartyA), res.PartyA.Total, in.name(contracts.PartyB), res.PartyB.Total,
		res.TensionWindows, res.BalanceScore)
	return res, nil
}

func apologyKind(text string) string {
	if explicitApology.MatchString(text) {
		return "explicit"
	}
	if softApology.MatchString(text) {
		return "soft"
	}
	return ""
}

func isTension(in Input, m contracts.CanonicalMessage) bool {
	return ScoreToxicity(m.Content) >= tensionToxicity || in.polarity(m) <= tensionPolarity
}

// reconciled reports whether both parties sent enough messages within the
// window that follows the apology at idx.
func reconciled(msgs []contracts.CanonicalMessage, idx int) bool {
	deadline := msgs[idx].Timestamp.Add(reconciliationWindow)
	counts := map[contracts.Party]int{}
	for _, m := range msgs[idx+1:] {
		if m.Timestamp.After(deadline) {
			break
		}
		counts[m.Party]++
	}
	return counts[contracts.PartyA] >= reconciliationMessages && counts[contracts.PartyB] >= reconciliationMessages
}
