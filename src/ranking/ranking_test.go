package ranking

import (
	"testing"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
)

func TestTier(t *testing.T) {
	tests := []struct {
		importance contracts.Importance
		want       int
	}{
		{contracts.ImportanceHigh, 1},
		{contracts.ImportanceMedium, 2},
		{contracts.ImportanceLow, 3},
		{"", 3},
	}
	for _, tt := range tests {
		if got := Tier(tt.importance); got != tt.want {
			t.Errorf("Tier(%q) = %d, want %d", tt.importance, got, tt.want)
		}
	}
}

func TestRankFindings(t *testing.T) {
	findings := []Finding{
		{Pattern: "low-1", Importance: contracts.ImportanceLow},
		{Pattern: "medium-1", Importance: contracts.ImportanceMedium},
		{Pattern: "high-1", Importance: contracts.ImportanceHigh},
		{Pattern: "medium-2", Importance: contracts.ImportanceMedium},
		{Pattern: "medium-1", Importance: contracts.ImportanceLow},
	}

	tf := RankFindings(findings)
	high, medium, low := tf.Counts()
	if high != 1 || medium != 2 || low != 1 {
		t.Fatalf("Counts() = %d/%d/%d, want 1/2/1", high, medium, low)
	}

	flat := tf.FlattenByTier()
	wantOrder := []Pattern{"high-1", "medium-1", "medium-2", "low-1"}
	for i, want := range wantOrder {
		if flat[i].Finding.Pattern != want {
			t.Errorf("flat[%d] = %s, want %s", i, flat[i].Finding.Pattern, want)
		}
		if flat[i].Rank != i+1 {
			t.Errorf("flat[%d].Rank = %d, want %d", i, flat[i].Rank, i+1)
		}
	}
}

func TestRankFindingsEmpty(t *testing.T) {
	tf := RankFindings(nil)
	if flat := tf.FlattenByTier(); flat != nil {
		t.Errorf("FlattenByTier() = %v, want nil", flat)
	}
	if got := Insights(tf); len(got) != 0 {
		t.Errorf("Insights() = %v, want empty", got)
	}
}

func strainedMetrics() contracts.Metrics {
	return contracts.Metrics{
		contracts.ClassifierToxicity: &analyze.ToxicityResult{Score: 0.4, Level: "moderate"},
		contracts.ClassifierResponseTime: &analyze.ResponseTimeResult{
			FasterParty: "B", PercentDifference: 60,
		},
		contracts.ClassifierDoubleTexting: &analyze.DoubleTextingResult{
			PartyA: analyze.PartyStreaks{InvestmentScore: 70},
			PartyB: analyze.PartyStreaks{InvestmentScore: 20},
		},
		contracts.ClassifierApology: &analyze.ApologyResult{
			PartyA: analyze.PartyApologies{Total: 4}, BalanceScore: 100,
		},
		contracts.ClassifierSentimentComparison: &analyze.SentimentComparisonResult{
			Comparison: contracts.Comparison{Leader: "B", Interpretation: "Bob writes more positively than Alice (gap 0.30)"},
		},
		contracts.ClassifierEngagement: &analyze.EngagementResult{
			PartyA: analyze.PartyEngagement{Score: 80, Messages: 10},
			PartyB: analyze.PartyEngagement{Score: 40, Messages: 10},
		},
		contracts.ClassifierCallbackConsistency: &analyze.CallbackConsistencyResult{
			Initiations: 10,
			PartyA:      analyze.PartyInitiations{Initiations: 8, Share: 0.8},
			PartyB:      analyze.PartyInitiations{Initiations: 2, Share: 0.2},
		},
		contracts.ClassifierPositivity: &analyze.PositivityResult{
			Score: 40, Level: contracts.HealthPoor, LowConfidence: true,
			MissingInputs: []contracts.ClassifierID{contracts.ClassifierSentiment},
		},
	}
}

func TestDeriveInsights(t *testing.T) {
	p := contracts.Personalization{PartyAName: "Alice", PartyBName: "Bob"}
	insights := DeriveInsights(strainedMetrics(), nil, p)

	want := []struct {
		category   string
		importance contracts.Importance
		text       string
	}{
		{"toxicity", contracts.ImportanceHigh, "Hostile language is moderate across the conversation (score 0.40)"},
		{"response_time", contracts.ImportanceMedium, "Bob replies 60% faster than Alice"},
		{"double_texting", contracts.ImportanceMedium, "Alice often sends several messages before Bob replies"},
		{"apology", contracts.ImportanceMedium, "Most apologies come from Alice"},
		{"engagement", contracts.ImportanceMedium, "Alice puts noticeably more effort into the conversation than Bob (40 points)"},
		{"initiation", contracts.ImportanceMedium, "Alice starts 80% of conversations"},
		{"sentiment", contracts.ImportanceLow, "Bob writes more positively than Alice (gap 0.30)"},
		{"health", contracts.ImportanceLow, "The health score is based on partial data (1 input metric(s) missing)"},
	}
	if len(insights) != len(want) {
		t.Fatalf("got %d insights, want %d: %+v", len(insights), len(want), insights)
	}
	for i, w := range want {
		got := insights[i]
		if got.Category != w.category || got.Importance != w.importance || got.Text != w.text {
			t.Errorf("insight[%d] = %+v, want {%s %q %s}", i, got, w.category, w.text, w.importance)
		}
	}
}

func TestDeriveInsightsBelowThresholds(t *testing.T) {
	metrics := contracts.Metrics{
		contracts.ClassifierToxicity:     &analyze.ToxicityResult{Score: 0.2, Level: "low"},
		contracts.ClassifierResponseTime: &analyze.ResponseTimeResult{FasterParty: "A", PercentDifference: 49.9},
		contracts.ClassifierDoubleTexting: &analyze.DoubleTextingResult{
			PartyA: analyze.PartyStreaks{InvestmentScore: 40},
			PartyB: analyze.PartyStreaks{InvestmentScore: 11},
		},
		contracts.ClassifierApology: &analyze.ApologyResult{
			PartyA: analyze.PartyApologies{Total: 1}, PartyB: analyze.PartyApologies{Total: 2}, BalanceScore: 33.3,
		},
		contracts.ClassifierSentimentComparison: &analyze.SentimentComparisonResult{
			Comparison: contracts.Comparison{Leader: contracts.Balanced},
		},
		contracts.ClassifierEngagement: &analyze.EngagementResult{
			PartyA: analyze.PartyEngagement{Score: 60, Messages: 5},
			PartyB: analyze.PartyEngagement{Score: 45, Messages: 5},
		},
		contracts.ClassifierCallbackConsistency: &analyze.CallbackConsistencyResult{
			Initiations: 10,
			PartyA:      analyze.PartyInitiations{Share: 0.6},
			PartyB:      analyze.PartyInitiations{Share: 0.4},
		},
		contracts.ClassifierPositivity: &analyze.PositivityResult{Score: 70, Level: contracts.HealthGood},
	}

	if insights := DeriveInsights(metrics, nil, contracts.Personalization{}); len(insights) != 0 {
		t.Errorf("expected no insights, got %+v", insights)
	}
}

func TestDeriveInsightsExcellentAndAbsent(t *testing.T) {
	metrics := contracts.Metrics{
		contracts.ClassifierPositivity: &analyze.PositivityResult{Score: 91, Level: contracts.HealthExcellent},
	}
	absent := map[contracts.ClassifierID]string{contracts.ClassifierApology: "panic: boom"}

	insights := DeriveInsights(metrics, absent, contracts.Personalization{})
	if len(insights) != 2 {
		t.Fatalf("got %d insights, want 2: %+v", len(insights), insights)
	}
	if insights[0].Text != "The conversation is in excellent shape (91/100)" {
		t.Errorf("insight[0] = %q", insights[0].Text)
	}
	if insights[1].Category != "coverage" || insights[1].Text != "1 of 12 metrics could not be computed" {
		t.Errorf("insight[1] = %+v", insights[1])
	}
}

func TestDeriveInsightsDefaultNames(t *testing.T) {
	metrics := contracts.Metrics{
		contracts.ClassifierResponseTime: &analyze.ResponseTimeResult{FasterParty: "A", PercentDifference: 75},
	}
	insights := DeriveInsights(metrics, nil, contracts.Personalization{})
	if len(insights) != 1 || insights[0].Text != "Party A replies 75% faster than Party B" {
		t.Errorf("insights = %+v", insights)
	}
}

func TestDeriveRecommendations(t *testing.T) {
	recs := DeriveRecommendations(strainedMetrics(), map[contracts.ClassifierID]string{contracts.ClassifierApology: "x"}, contracts.Personalization{})

	if len(recs) == 0 || recs[0].Action != catalog[PatternToxicity].Action {
		t.Fatalf("first recommendation = %+v, want toxicity", recs)
	}
	seen := map[string]bool{}
	for i, r := range recs {
		if seen[r.Action] {
			t.Errorf("duplicate recommendation %q", r.Action)
		}
		seen[r.Action] = true
		if i > 0 && Tier(r.Priority) < Tier(recs[i-1].Priority) {
			t.Errorf("recommendations not sorted by priority at %d: %s after %s", i, r.Priority, recs[i-1].Priority)
		}
	}
	// Low confidence and missing classifiers share one action.
	if !seen[catalog[PatternLowConfidence].Action] {
		t.Error("missing low-confidence recommendation")
	}
	if len(recs) != 8 {
		t.Errorf("got %d recommendations, want 8", len(recs))
	}
}

func TestDecliningTrend(t *testing.T) {
	first, second := 72.0, 51.0
	metrics := contracts.Metrics{
		contracts.ClassifierPositivity: &analyze.PositivityResult{
			Score: 60, Level: contracts.HealthModerate, Trend: contracts.TrendDeclining,
			FirstHalf: &first, SecondHalf: &second,
		},
	}
	insights := DeriveInsights(metrics, nil, contracts.Personalization{})
	if len(insights) != 1 || insights[0].Text != "Health dropped from 72 in the first half to 51 in the second" {
		t.Errorf("insights = %+v", insights)
	}
	recs := DeriveRecommendations(metrics, nil, contracts.Personalization{})
	if len(recs) != 1 || recs[0].Priority != contracts.ImportanceHigh {
		t.Errorf("recommendations = %+v", recs)
	}
}
