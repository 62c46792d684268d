package analyze

import (
	"fmt"
	"sort"
	"strings"

	"rapport-agent/src/contracts"
)

const (
	// Messages at or above this score are flagged.
	toxicFlagThreshold = 0.3
	// Number of flagged messages kept per party.
	toxicTopN = 3
	// Excerpt length of a flagged message, in runes.
	excerptRunes = 80
)

// FlaggedMessage is one of a party's most toxic messages.
type FlaggedMessage struct {
	SequenceID int      `json:"sequence_id"`
	Score      float64  `json:"score"`
	Excerpt    string   `json:"excerpt"`
	Categories []string `json:"categories,omitempty"`
}

// PartyToxicity is one party's toxicity profile.
type PartyToxicity struct {
	Score   float64          `json:"score"`
	Level   string           `json:"level"`
	Flagged []FlaggedMessage `json:"flagged"`
}

// ToxicityResult is the conversation-wide toxicity.
type ToxicityResult struct {
	Summary    string               `json:"summary"`
	Score      float64              `json:"score"`
	Level      string               `json:"level"`
	PartyA     PartyToxicity        `json:"party_a"`
	PartyB     PartyToxicity        `json:"party_b"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *ToxicityResult) MetricID() contracts.ClassifierID { return contracts.ClassifierToxicity }
func (r *ToxicityResult) MetricSummary() string            { return r.Summary }

func (r *ToxicityResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("score", fmtFloat(r.Score)),
		field("level", r.Level),
		field("party_a_score", fmtFloat(r.PartyA.Score)),
		field("party_b_score", fmtFloat(r.PartyB.Score)),
		field("party_a_flagged", fmtInt(len(r.PartyA.Flagged))),
		field("party_b_flagged", fmtInt(len(r.PartyB.Flagged))),
	}
}

// Toxicity scores every message against the weighted lexicon.
type Toxicity struct{}

func (Toxicity) ID() contracts.ClassifierID { return contracts.ClassifierToxicity }
func (Toxicity) Name() string               { return "Toxicity" }

func (Toxicity) Analyze(in Input) (contracts.MetricResult, error) {
	all := make([]float64, 0, len(in.Messages))
	scored := map[contracts.Party][]FlaggedMessage{}
	perParty := map[contracts.Party][]float64{}

	for _, m := range in.Messages {
		s := ScoreToxicity(m.Content)
		all = append(all, s)
		perParty[m.Party] = append(perParty[m.Party], s)
		if s >= toxicFlagThreshold {
			scored[m.Party] = append(scored[m.Party], FlaggedMessage{
				SequenceID: m.SequenceID,
				Score:      round(s, 3),
				Excerpt:    excerpt(m.Content),
				Categories: toxicHits(m.Content),
			})
		}
	}

	party := func(p contracts.Party) PartyToxicity {
		s := round(mean(perParty[p]), 4)
		return PartyToxicity{Score: s, Level: toxicityLevel(s), Flagged: topFlagged(scored[p])}
	}

	res := &ToxicityResult{
		Score:  round(mean(all), 4),
		PartyA: party(contracts.PartyA),
		PartyB: party(contracts.PartyB),
	}
	res.Level = toxicityLevel(res.Score)
	res.Comparison = compare(in, res.PartyA.Score, res.PartyB.Score, 0.05, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s's messages are more hostile than %s's", leader, other)
	})
	res.Summary = fmt.Sprintf("Toxicity is %s (%.2f); %d messages flagged",
		res.Level, res.Score, len(scored[contracts.PartyA])+len(scored[contracts.PartyB]))
	return res, nil
}

// toxicityLevel maps a score onto the five bands.
func toxicityLevel(score float64) string {
	switch {
	case score >= 0.75:
		return "severe"
	case score >= 0.5:
		return "high"
	case score >= 0.3:
		return "moderate"
	case score >= 0.1:
		return "low"
	}
	return "none"
}

// ToxicityAtLeastModerate reports whether a level string is moderate or worse.
func ToxicityAtLeastModerate(level string) bool {
	switch level {
	case "moderate", "high", "severe":
		return true
	}
	return false
}

func topFlagged(msgs []FlaggedMessage) []FlaggedMessage {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Score > msgs[j].Score
	})
	if len(msgs) > toxicTopN {
		msgs = msgs[:toxicTopN]
	}
	if msgs == nil {
		return []FlaggedMessage{}
	}
	return msgs
}

func toxicHits(text string) []string {
	var out []string
	for _, c := range toxicCategories {
		if c.pattern.MatchString(text) {
			out = append(out, c.name)
		}
	}
	if isShouting(text) {
		out = append(out, "shouting")
	}
	return out
}

func excerpt(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes-3]) + "..."
}
