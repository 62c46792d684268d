// Package ranking turns metric results into prioritized insights and
// recommendations. The orchestrator, the exporters and the TUI all consume
// this package so a report reads the same everywhere.
package ranking

import (
	"fmt"
	"math"
	"sort"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
)

// Pattern keys a detected behavior. Each pattern maps to at most one
// recommendation in the catalog.
type Pattern string

const (
	PatternToxicity          Pattern = "toxicity"
	PatternResponseGap       Pattern = "response_gap"
	PatternDoubleTexting     Pattern = "double_texting_imbalance"
	PatternApologyImbalance  Pattern = "apology_imbalance"
	PatternSentimentGap      Pattern = "sentiment_gap"
	PatternEngagementGap     Pattern = "engagement_gap"
	PatternCallbackLopsided  Pattern = "callback_lopsided"
	PatternLowConfidence     Pattern = "low_confidence"
	PatternHealthExcellent   Pattern = "health_excellent"
	PatternHealthDeclining   Pattern = "health_declining"
	PatternClassifierMissing Pattern = "classifier_missing"
)

// Thresholds for the detectors.
const (
	responseGapPercent = 50.0
	investmentGap      = 30.0
	apologyBalanceLow  = 25.0
	apologyBalanceHigh = 75.0
	engagementGap      = 20.0
	lopsidedInitiation = 0.7
	minCallbackSamples = 2
)

// Finding is one detected pattern with its rendered text.
type Finding struct {
	Pattern    Pattern
	Category   string
	Text       string
	Importance contracts.Importance
}

// Tier returns the sort tier of an importance: high 1, medium 2, low 3.
func Tier(i contracts.Importance) int {
	switch i {
	case contracts.ImportanceHigh:
		return 1
	case contracts.ImportanceMedium:
		return 2
	}
	return 3
}

// RankedFinding wraps a Finding with tier and rank information.
type RankedFinding struct {
	Finding Finding
	Tier    int
	Rank    int // Position within the flattened list (1-indexed)
}

// TieredFindings groups findings by importance, each tier in detection order.
type TieredFindings struct {
	High   []RankedFinding
	Medium []RankedFinding
	Low    []RankedFinding
}

// RankFindings classifies findings into tiers. Duplicates (same Pattern) are
// removed, keeping the most important occurrence.
func RankFindings(findings []Finding) TieredFindings {
	if len(findings) == 0 {
		return TieredFindings{}
	}

	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Tier(sorted[i].Importance) < Tier(sorted[j].Importance)
	})

	seen := make(map[Pattern]bool)
	var tf TieredFindings
	for _, f := range sorted {
		if seen[f.Pattern] {
			continue
		}
		seen[f.Pattern] = true

		ranked := RankedFinding{Finding: f, Tier: Tier(f.Importance)}
		switch ranked.Tier {
		case 1:
			tf.High = append(tf.High, ranked)
		case 2:
			tf.Medium = append(tf.Medium, ranked)
		default:
			tf.Low = append(tf.Low, ranked)
		}
	}
	return tf
}

// FlattenByTier returns all findings, high first, and assigns global ranks.
func (tf TieredFindings) FlattenByTier() []RankedFinding {
	total := len(tf.High) + len(tf.Medium) + len(tf.Low)
	if total == 0 {
		return nil
	}

	result := make([]RankedFinding, 0, total)
	result = append(result, tf.High...)
	result = append(result, tf.Medium...)
	result = append(result, tf.Low...)

	for i := range result {
		result[i].Rank = i + 1
	}
	return result
}

// Counts returns the number of findings per tier.
func (tf TieredFindings) Counts() (high, medium, low int) {
	return len(tf.High), len(tf.Medium), len(tf.Low)
}

// Detect runs every detector over the available metrics. Absent metrics are
// skipped; a non-empty absent map adds one low-importance note.
func Detect(metrics contracts.Metrics, absent map[contracts.ClassifierID]string, p contracts.Personalization) []Finding {
	names := namer(p)
	var out []Finding
	add := func(f *Finding) {
		if f != nil {
			out = append(out, *f)
		}
	}

	if r, ok := metrics[contracts.ClassifierToxicity].(*analyze.ToxicityResult); ok {
		add(detectToxicity(r))
	}
	if r, ok := metrics[contracts.ClassifierResponseTime].(*analyze.ResponseTimeResult); ok {
		add(detectResponseGap(r, names))
	}
	if r, ok := metrics[contracts.ClassifierDoubleTexting].(*analyze.DoubleTextingResult); ok {
		add(detectDoubleTexting(r, names))
	}
	if r, ok := metrics[contracts.ClassifierApology].(*analyze.ApologyResult); ok {
		add(detectApology(r, names))
	}
	if r, ok := metrics[contracts.ClassifierSentimentComparison].(*analyze.SentimentComparisonResult); ok {
		add(detectSentimentGap(r))
	}
	if r, ok := metrics[contracts.ClassifierEngagement].(*analyze.EngagementResult); ok {
		add(detectEngagementGap(r, names))
	}
	if r, ok := metrics[contracts.ClassifierCallbackConsistency].(*analyze.CallbackConsistencyResult); ok {
		add(detectCallback(r, names))
	}
	if r, ok := metrics[contracts.ClassifierPositivity].(*analyze.PositivityResult); ok {
		add(detectHealth(r))
		add(detectTrend(r))
		add(detectLowConfidence(r))
	}
	if len(absent) > 0 {
		add(&Finding{
			Pattern:    PatternClassifierMissing,
			Category:   "coverage",
			Text:       fmt.Sprintf("%d of %d metrics could not be computed", len(absent), len(analyze.Default())),
			Importance: contracts.ImportanceLow,
		})
	}
	return out
}

// DeriveInsights returns the ranked insights for a set of metrics.
func DeriveInsights(metrics contracts.Metrics, absent map[contracts.ClassifierID]string, p contracts.Personalization) []contracts.Insight {
	return Insights(RankFindings(Detect(metrics, absent, p)))
}

// DeriveRecommendations returns the catalog actions for a set of metrics.
func DeriveRecommendations(metrics contracts.Metrics, absent map[contracts.ClassifierID]string, p contracts.Personalization) []contracts.Recommendation {
	return Recommendations(RankFindings(Detect(metrics, absent, p)))
}

// Insights renders ranked findings in rank order.
func Insights(tf TieredFindings) []contracts.Insight {
	flat := tf.FlattenByTier()
	out := make([]contracts.Insight, 0, len(flat))
	for _, rf := range flat {
		out = append(out, contracts.Insight{
			Category:   rf.Finding.Category,
			Text:       rf.Finding.Text,
			Importance: rf.Finding.Importance,
		})
	}
	return out
}

// Recommendations looks up each finding's pattern in the catalog, sorts by
// priority and drops duplicate actions.
func Recommendations(tf TieredFindings) []contracts.Recommendation {
	var recs []contracts.Recommendation
	for _, rf := range tf.FlattenByTier() {
		if rec, ok := catalog[rf.Finding.Pattern]; ok {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return Tier(recs[i].Priority) < Tier(recs[j].Priority)
	})

	seen := make(map[string]bool)
	out := make([]contracts.Recommendation, 0, len(recs))
	for _, r := range recs {
		if seen[r.Action] {
			continue
		}
		seen[r.Action] = true
		out = append(out, r)
	}
	return out
}

func namer(p contracts.Personalization) func(string) string {
	return func(party string) string {
		switch contracts.Party(party) {
		case contracts.PartyA:
			return p.NameFor(contracts.PartyA, "Party A")
		case contracts.PartyB:
			return p.NameFor(contracts.PartyB, "Party B")
		}
		return party
	}
}

func detectToxicity(r *analyze.ToxicityResult) *Finding {
	if !analyze.ToxicityAtLeastModerate(r.Level) {
		return nil
	}
	return &Finding{
		Pattern:    PatternToxicity,
		Category:   "toxicity",
		Text:       fmt.Sprintf("Hostile language is %s across the conversation (score %.2f)", r.Level, r.Score),
		Importance: contracts.ImportanceHigh,
	}
}

func detectResponseGap(r *analyze.ResponseTimeResult, name func(string) string) *Finding {
	if r.FasterParty == "" || r.PercentDifference < responseGapPercent {
		return nil
	}
	slower := contracts.Party(r.FasterParty).Other()
	return &Finding{
		Pattern:  PatternResponseGap,
		Category: "response_time",
		Text: fmt.Sprintf("%s replies %.0f%% faster than %s",
			name(r.FasterParty), r.PercentDifference, name(string(slower))),
		Importance: contracts.ImportanceMedium,
	}
}

func detectDoubleTexting(r *analyze.DoubleTextingResult, name func(string) string) *Finding {
	gap := math.Abs(r.PartyA.InvestmentScore - r.PartyB.InvestmentScore)
	if gap < investmentGap {
		return nil
	}
	leader := contracts.PartyA
	if r.PartyB.InvestmentScore > r.PartyA.InvestmentScore {
		leader = contracts.PartyB
	}
	return &Finding{
		Pattern:  PatternDoubleTexting,
		Category: "double_texting",
		Text: fmt.Sprintf("%s often sends several messages before %s replies",
			name(string(leader)), name(string(leader.Other()))),
		Importance: contracts.ImportanceMedium,
	}
}

func detectApology(r *analyze.ApologyResult, name func(string) string) *Finding {
	if r.PartyA.Total+r.PartyB.Total == 0 {
		return nil
	}
	var who contracts.Party
	switch {
	case r.BalanceScore >= apologyBalanceHigh:
		who = contracts.PartyA
	case r.BalanceScore <= apologyBalanceLow:
		who = contracts.PartyB
	default:
		return nil
	}
	return &Finding{
		Pattern:    PatternApologyImbalance,
		Category:   "apology",
		Text:       fmt.Sprintf("Most apologies come from %s", name(string(who))),
		Importance: contracts.ImportanceMedium,
	}
}

func detectSentimentGap(r *analyze.SentimentComparisonResult) *Finding {
	if r.Comparison.Leader == contracts.Balanced {
		return nil
	}
	return &Finding{
		Pattern:    PatternSentimentGap,
		Category:   "sentiment",
		Text:       r.Comparison.Interpretation,
		Importance: contracts.ImportanceLow,
	}
}

func detectEngagementGap(r *analyze.EngagementResult, name func(string) string) *Finding {
	if r.PartyA.Messages == 0 || r.PartyB.Messages == 0 {
		return nil
	}
	gap := math.Abs(r.PartyA.Score - r.PartyB.Score)
	if gap < engagementGap {
		return nil
	}
	leader := contracts.PartyA
	if r.PartyB.Score > r.PartyA.Score {
		leader = contracts.PartyB
	}
	return &Finding{
		Pattern:  PatternEngagementGap,
		Category: "engagement",
		Text: fmt.Sprintf("%s puts noticeably more effort into the conversation than %s (%.0f points)",
			name(string(leader)), name(string(leader.Other())), gap),
		Importance: contracts.ImportanceMedium,
	}
}

func detectCallback(r *analyze.CallbackConsistencyResult, name func(string) string) *Finding {
	if r.Initiations < minCallbackSamples {
		return nil
	}
	leader, share := contracts.PartyA, r.PartyA.Share
	if r.PartyB.Share > share {
		leader, share = contracts.PartyB, r.PartyB.Share
	}
	if share < lopsidedInitiation {
		return nil
	}
	return &Finding{
		Pattern:    PatternCallbackLopsided,
		Category:   "initiation",
		Text:       fmt.Sprintf("%s starts %.0f%% of conversations", name(string(leader)), share*100),
		Importance: contracts.ImportanceMedium,
	}
}

func detectHealth(r *analyze.PositivityResult) *Finding {
	if r.Level != contracts.HealthExcellent {
		return nil
	}
	return &Finding{
		Pattern:    PatternHealthExcellent,
		Category:   "health",
		Text:       fmt.Sprintf("The conversation is in excellent shape (%.0f/100)", r.Score),
		Importance: contracts.ImportanceLow,
	}
}

func detectTrend(r *analyze.PositivityResult) *Finding {
	if r.Trend != contracts.TrendDeclining || r.FirstHalf == nil || r.SecondHalf == nil {
		return nil
	}
	return &Finding{
		Pattern:  PatternHealthDeclining,
		Category: "trend",
		Text: fmt.Sprintf("Health dropped from %.0f in the first half to %.0f in the second",
			*r.FirstHalf, *r.SecondHalf),
		Importance: contracts.ImportanceMedium,
	}
}

func detectLowConfidence(r *analyze.PositivityResult) *Finding {
	if !r.LowConfidence {
		return nil
	}
	return &Finding{
		Pattern:    PatternLowConfidence,
		Category:   "health",
		Text:       fmt.Sprintf("The health score is based on partial data (%d input metric(s) missing)", len(r.MissingInputs)),
		Importance: contracts.ImportanceLow,
	}
}
