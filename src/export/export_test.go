package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
)

func sampleReport() *contracts.Report {
	return &contracts.Report{
		ID:          "rep-1",
		GeneratedAt: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		SourceStats: contracts.SourceStats{
			Format:         contracts.FormatPaste,
			Messages:       9,
			DroppedLines:   1,
			PartyALabel:    "alice",
			PartyBLabel:    "bob",
			PartyAMessages: 5,
			PartyBMessages: 4,
			FirstMessageAt: time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC),
			LastMessageAt:  time.Date(2000, 1, 1, 11, 20, 0, 0, time.UTC),
		},
		HealthScore: 68,
		HealthLevel: contracts.HealthGood,
		Trend:       contracts.TrendInsufficientData,
		Metrics: contracts.Metrics{
			contracts.ClassifierPositivity: &analyze.PositivityResult{
				Summary: "Health 68.0 (good)", Score: 68, Level: contracts.HealthGood,
				Trend: contracts.TrendInsufficientData,
			},
			contracts.ClassifierSentiment: &analyze.SentimentResult{
				Summary: "Overall sentiment is positive", Score: 0.42, Label: "positive", Positive: 6, Neutral: 3, Messages: 9,
			},
		},
		Absent: map[contracts.ClassifierID]string{
			contracts.ClassifierToxicity: "panic: boom",
		},
		Insights: []contracts.Insight{
			{Category: "toxicity", Text: "Toxicity could not be measured", Importance: contracts.ImportanceLow},
		},
		Recommendations: []contracts.Recommendation{
			{Priority: contracts.ImportanceLow, Action: "Share more of the conversation", Details: "Longer exports give steadier scores."},
		},
		Personalization: contracts.Personalization{PartyAName: "Alice"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in       string
		expected Format
		wantErr  bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"txt", FormatText, false},
		{" text ", FormatText, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseFormat(%q) = %q, %v, expected %q", tt.in, got, err, tt.expected)
		}
	}
}

func TestJSONIsStable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, JSON(&a, sampleReport()))
	require.NoError(t, JSON(&b, sampleReport()))
	assert.Equal(t, a.String(), b.String())

	// Metrics keys come out sorted.
	out := a.String()
	assert.Less(t, strings.Index(out, `"positivity"`), strings.Index(out, `"sentiment"`))
}

func TestCSVRowsFollowRunOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "field", "value"}, rows[0])
	assert.Equal(t, []string{"report", "health_score", "68.00"}, rows[3])

	var metrics []string
	for _, row := range rows[1:] {
		if row[0] == "report" {
			continue
		}
		if len(metrics) == 0 || metrics[len(metrics)-1] != row[0] {
			metrics = append(metrics, row[0])
		}
	}
	assert.Equal(t, []string{"sentiment", "toxicity", "positivity"}, metrics)
	assert.Contains(t, rows, []string{"toxicity", "absent", "panic: boom"})
	assert.Contains(t, rows, []string{"sentiment", "score", "0.420"})
	assert.Contains(t, rows, []string{"positivity", "level", "good"})
}

func TestTextSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sampleReport(), 60))
	out := buf.String()

	var positions []int
	for _, heading := range []string{"Overview\n--------", "Metrics\n-------", "Insights\n--------", "Recommendations\n---------------"} {
		i := strings.Index(out, heading)
		require.GreaterOrEqual(t, i, 0, "missing section %q", heading)
		positions = append(positions, i)
	}
	for i := 1; i < len(positions); i++ {
		assert.Greater(t, positions[i], positions[i-1])
	}

	assert.Contains(t, out, "Health score  68.0 / 100 (good)")
	assert.Contains(t, out, "Alice (5 messages), bob (4 messages)")
	assert.Contains(t, out, "9 (1 unreadable lines skipped)")
	assert.Contains(t, out, "Not available: panic: boom")
	assert.Contains(t, out, "[LOW] Toxicity could not be measured")
	assert.Contains(t, out, "1. Share more of the conversation (low priority)")
	assert.Contains(t, out, "   Longer exports give steadier scores.")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, VisualWidth(line), 60, "line too wide: %q", line)
	}
}

func TestWriteDispatches(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatCSV, FormatText} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, sampleReport(), f), f)
		assert.NotEmpty(t, buf.String(), f)
	}
	assert.Error(t, Write(&bytes.Buffer{}, sampleReport(), "xml"))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text     string
		width    int
		expected string
	}{
		{"the quick brown fox", 9, "the quick\nbrown fox"},
		{"abcdefghij", 4, "abcd\nefgh\nij"},
		{"one\ntwo three", 5, "one\ntwo\nthree"},
		{"\u4f60\u597d\u4f60\u597d", 4, "\u4f60\u597d\n\u4f60\u597d"},
		{"", 10, ""},
		{"unchanged", 0, "unchanged"},
	}
	for _, tt := range tests {
		if got := Wrap(tt.text, tt.width); got != tt.expected {
			t.Errorf("Wrap(%q, %d) = %q, expected %q", tt.text, tt.width, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s        string
		max      int
		ellipsis bool
		expected string
	}{
		{"hello world", 8, true, "hello..."},
		{"hello world", 5, false, "hello"},
		{"  short  ", 10, true, "short"},
		{"anything", 0, true, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.max, tt.ellipsis); got != tt.expected {
			t.Errorf("Truncate(%q, %d, %v) = %q, expected %q", tt.s, tt.max, tt.ellipsis, got, tt.expected)
		}
	}
	if got := TruncateAndPad("ab", 4, false); got != "ab  " {
		t.Errorf("TruncateAndPad() = %q, expected padding", got)
	}
}
