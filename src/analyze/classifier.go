// Package analyze provides the stateless classifier suite.
//
// Every classifier is a pure function of its Input: no shared state, no I/O.
// The orchestrator relies on this to run them in a fixed order and to isolate
// a failing classifier from its siblings.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"time"

	"rapport-agent/src/contracts"
)

// Input is everything a classifier may look at.
type Input struct {
	Messages        []contracts.CanonicalMessage
	Personalization contracts.Personalization
	// Polarity optionally overrides the lexicon scorer, keyed by SequenceID.
	Polarity map[int]float64
	// Results holds the outputs of classifiers that already ran.
	// Only aggregate classifiers read it.
	Results map[contracts.ClassifierID]contracts.MetricResult
}

// Classifier computes one behavioral metric.
type Classifier interface {
	ID() contracts.ClassifierID
	Name() string
	Analyze(in Input) (contracts.MetricResult, error)
}

// Default returns the full suite in its fixed run order.
// Positivity comes last because it consumes earlier results.
func Default() []Classifier {
	return []Classifier{
		Sentiment{},
		SentimentComparison{},
		Toxicity{},
		Engagement{},
		DoubleTexting{},
		ResponseTime{},
		Apology{},
		WeekdayActivity{},
		CallbackConsistency{},
		StreakTiming{},
		CommunicationPatterns{},
		Positivity{},
	}
}

func init() {
	contracts.RegisterMetric(contracts.ClassifierSentiment, func() contracts.MetricResult { return &SentimentResult{} })
	contracts.RegisterMetric(contracts.ClassifierSentimentComparison, func() contracts.MetricResult { return &SentimentComparisonResult{} })
	contracts.RegisterMetric(contracts.ClassifierToxicity, func() contracts.MetricResult { return &ToxicityResult{} })
	contracts.RegisterMetric(contracts.ClassifierEngagement, func() contracts.MetricResult { return &EngagementResult{} })
	contracts.RegisterMetric(contracts.ClassifierDoubleTexting, func() contracts.MetricResult { return &DoubleTextingResult{} })
	contracts.RegisterMetric(contracts.ClassifierResponseTime, func() contracts.MetricResult { return &ResponseTimeResult{} })
	contracts.RegisterMetric(contracts.ClassifierApology, func() contracts.MetricResult { return &ApologyResult{} })
	contracts.RegisterMetric(contracts.ClassifierPositivity, func() contracts.MetricResult { return &PositivityResult{} })
	contracts.RegisterMetric(contracts.ClassifierWeekdayActivity, func() contracts.MetricResult { return &WeekdayActivityResult{} })
	contracts.RegisterMetric(contracts.ClassifierCallbackConsistency, func() contracts.MetricResult { return &CallbackConsistencyResult{} })
	contracts.RegisterMetric(contracts.ClassifierStreakTiming, func() contracts.MetricResult { return &StreakTimingResult{} })
	contracts.RegisterMetric(contracts.ClassifierCommunicationPatterns, func() contracts.MetricResult { return &CommunicationPatternsResult{} })
}

// polarity returns the precomputed polarity for m, or the lexicon score.
func (in Input) polarity(m contracts.CanonicalMessage) float64 {
	if p, ok := in.Polarity[m.SequenceID]; ok {
		return clamp(p, -1, 1)
	}
	return ScorePolarity(m.Content)
}

func (in Input) name(p contracts.Party) string {
	if p == contracts.PartyA {
		return in.Personalization.NameFor(p, "Party A")
	}
	return in.Personalization.NameFor(p, "Party B")
}

// byParty splits messages by author, preserving order.
func byParty(msgs []contracts.CanonicalMessage) map[contracts.Party][]contracts.CanonicalMessage {
	out := map[contracts.Party][]contracts.CanonicalMessage{}
	for _, m := range msgs {
		out[m.Party] = append(out[m.Party], m)
	}
	return out
}

// reply is a message answering the other party, with the gap since their last message.
type reply struct {
	index int
	party contracts.Party
	gap   time.Duration
}

func replies(msgs []contracts.CanonicalMessage) []reply {
	var out []reply
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Party == msgs[i-1].Party {
			continue
		}
		out = append(out, reply{index: i, party: msgs[i].Party, gap: msgs[i].Timestamp.Sub(msgs[i-1].Timestamp)})
	}
	return out
}

// compare builds a Comparison where the higher value leads.
// Values within minGap of each other are balanced.
func compare(in Input, a, b, minGap float64, describe func(leader, other string, gap float64) string) contracts.Comparison {
	gap := math.Abs(a - b)
	if gap <= minGap {
		return contracts.Comparison{
			Leader:         contracts.Balanced,
			Magnitude:      round(gap, 3),
			Interpretation: fmt.Sprintf("%s and %s are about even", in.name(contracts.PartyA), in.name(contracts.PartyB)),
		}
	}
	leader, other := contracts.PartyA, contracts.PartyB
	if b > a {
		leader, other = other, leader
	}
	return contracts.Comparison{
		Leader:         string(leader),
		Magnitude:      round(gap, 3),
		Interpretation: describe(in.name(leader), in.name(other), gap),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func fmtFloat(x float64) string {
	return fmt.Sprintf("%.3f", x)
}

func fmtInt(n int) string {
	return fmt.Sprintf("%d", n)
}

func field(name, value string) contracts.MetricField {
	return contracts.MetricField{Name: name, Value: value}
}
