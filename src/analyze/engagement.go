package analyze

import (
	"fmt"
	"sort"
	"strings"

	"rapport-agent/src/contracts"
)

// Engagement component weights. They sum to 1.
const (
	weightLength     = 0.30
	weightQuestions  = 0.25
	weightEmoji      = 0.15
	weightPromptness = 0.30

	// Average message length, in characters, that earns the full length component.
	fullLengthChars = 80.0
	// Share of messages with a question or emoji that earns the full component.
	fullQuestionShare = 0.5
	fullEmojiShare    = 0.5
	// Median reply time, in minutes, at which promptness is one half.
	promptnessHalfLife = 30.0
	// Promptness used when a party never replied.
	neutralPromptness = 0.5
)

// Driver names reported in TopDrivers.
const (
	DriverLength     = "message_length"
	DriverQuestions  = "questions"
	DriverEmoji      = "emoji"
	DriverPromptness = "promptness"
)

// PartyEngagement is one party's engagement profile.
type PartyEngagement struct {
	Score              float64            `json:"score"`
	Messages           int                `json:"messages"`
	AvgLength          float64            `json:"avg_length"`
	QuestionRatio      float64            `json:"question_ratio"`
	EmojiRatio         float64            `json:"emoji_ratio"`
	MedianReplyMinutes *float64           `json:"median_reply_minutes,omitempty"`
	Components         map[string]float64 `json:"components"`
	TopDrivers         []string           `json:"top_drivers"`
}

// EngagementResult compares how much effort each party puts in.
type EngagementResult struct {
	Summary string          `json:"summary"`
	PartyA  PartyEngagement `json:"party_a"`
	PartyB  PartyEngagement `json:"party_b"`
	// Average over parties that sent at least one message.
	Average    float64              `json:"average"`
	Comparison contracts.Comparison `json:"comparison"`
}

func (r *EngagementResult) MetricID() contracts.ClassifierID { return contracts.ClassifierEngagement }
func (r *EngagementResult) MetricSummary() string            { return r.Summary }

func (r *EngagementResult) Fields() []contracts.MetricField {
	return []contracts.MetricField{
		field("party_a_score", fmtFloat(r.PartyA.Score)),
		field("party_b_score", fmtFloat(r.PartyB.Score)),
		field("average", fmtFloat(r.Average)),
		field("party_a_drivers", strings.Join(r.PartyA.TopDrivers, ";")),
		field("party_b_drivers", strings.Join(r.PartyB.TopDrivers, ";")),
		field("leader", r.Comparison.Leader),
	}
}

// Engagement scores each party from length, questions, emoji and promptness.
type Engagement struct{}

func (Engagement) ID() contracts.ClassifierID { return contracts.ClassifierEngagement }
func (Engagement) Name() string               { return "Engagement" }

func (Engagement) Analyze(in Input) (contracts.MetricResult, error) {
	res := &EngagementResult{}
	res.PartyA, res.PartyB = engagementFor(in.Messages)
	res.Average = round(averageEngagement(res.PartyA, res.PartyB), 2)
	res.Comparison = compare(in, res.PartyA.Score, res.PartyB.Score, 5, func(leader, other string, gap float64) string {
		return fmt.Sprintf("%s is more engaged than %s by %.0f points", leader, other, gap)
	})
	res.Summary = fmt.Sprintf("Engagement %s %.0f/100, %s %.0f/100",
		in.name(contracts.PartyA), res.PartyA.Score, in.name(contracts.PartyB), res.PartyB.Score)
	return res, nil
}

// engagementFor computes both parties' profiles over a message slice.
func engagementFor(msgs []contracts.CanonicalMessage) (PartyEngagement, PartyEngagement) {
	gaps := map[contracts.Party][]float64{}
	for _, r := range replies(msgs) {
		gaps[r.party] = append(gaps[r.party], r.gap.Minutes())
	}
	parts := byParty(msgs)
	return partyEngagement(parts[contracts.PartyA], gaps[contracts.PartyA]),
		partyEngagement(parts[contracts.PartyB], gaps[contracts.PartyB])
}

func partyEngagement(msgs []contracts.CanonicalMessage, replyMinutes []float64) PartyEngagement {
	pe := PartyEngagement{Messages: len(msgs), Components: map[string]float64{}, TopDrivers: []string{}}
	if len(msgs) == 0 {
		return pe
	}

	var totalLen, questions, emoji int
	for _, m := range msgs {
		totalLen += m.Length
		if strings.Contains(m.Content, "?") {
			questions++
		}
		if CountEmoji(m.Content) > 0 {
			emoji++
		}
	}
	pe.AvgLength = round(float64(totalLen)/float64(len(msgs)), 2)
	pe.QuestionRatio = round(ratio(questions, len(msgs)), 4)
	pe.EmojiRatio = round(ratio(emoji, len(msgs)), 4)

	promptness := neutralPromptness
	if len(replyMinutes) > 0 {
		med := round(median(replyMinutes), 2)
		pe.MedianReplyMinutes = &med
		promptness = 1 / (1 + med/promptnessHalfLife)
	}

	weighted := map[string]float64{
		DriverLength:     weightLength * clamp(pe.AvgLength/fullLengthChars, 0, 1),
		DriverQuestions:  weightQuestions * clamp(pe.QuestionRatio/fullQuestionShare, 0, 1),
		DriverEmoji:      weightEmoji * clamp(pe.EmojiRatio/fullEmojiShare, 0, 1),
		DriverPromptness: weightPromptness * promptness,
	}
	var total float64
	for k, v := range weighted {
		pe.Components[k] = round(v*100, 2)
		total += v
	}
	pe.Score = round(total*100, 2)
	pe.TopDrivers = topDrivers(weighted, 2)
	return pe
}

// topDrivers returns the n largest non-zero contributions, ties broken by name.
func topDrivers(weighted map[string]float64, n int) []string {
	names := make([]string, 0, len(weighted))
	for k, v := range weighted {
		if v > 0 {
			names = append(names, k)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if weighted[names[i]] != weighted[names[j]] {
			return weighted[names[i]] > weighted[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

func averageEngagement(a, b PartyEngagement) float64 {
	var scores []float64
	for _, p := range []PartyEngagement{a, b} {
		if p.Messages > 0 {
			scores = append(scores, p.Score)
		}
	}
	return mean(scores)
}
