package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
	"rapport-agent/src/normalize"
)

const conversation = `10:00 Alice: hey! how was your day?
10:01 Bob: pretty good, thanks! yours?
10:02 Alice: great, I loved the movie
10:03 Alice: we should go again
10:30 Bob: sure
11:00 Alice: sorry I was grumpy yesterday
11:05 Bob: no worries at all
11:06 Alice: dinner tonight?
11:20 Bob: yes please`

func input() contracts.AnalysisInput {
	return contracts.AnalysisInput{
		Content:         conversation,
		Format:          contracts.FormatPaste,
		Personalization: contracts.Personalization{PartyAName: "Alice", PartyBName: "Bob"},
	}
}

type failing struct {
	analyze.Classifier
	err   error
	panic bool
}

func (f failing) Analyze(analyze.Input) (contracts.MetricResult, error) {
	if f.panic {
		panic("boom")
	}
	return nil, f.err
}

// suiteWith replaces the classifier with the given ID.
func suiteWith(id contracts.ClassifierID, replace func(analyze.Classifier) analyze.Classifier) []analyze.Classifier {
	suite := analyze.Default()
	for i, c := range suite {
		if c.ID() == id {
			suite[i] = replace(c)
		}
	}
	return suite
}

type recorder struct {
	reports []*contracts.Report
	err     error
}

func (r *recorder) Append(_ context.Context, rep *contracts.Report) error {
	r.reports = append(r.reports, rep)
	return r.err
}

func TestRunProducesReport(t *testing.T) {
	hist := &recorder{}
	o := New(WithHistory(hist))

	var updates []Progress
	report, err := o.RunWithProgress(context.Background(), input(), func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(report.Metrics) != 12 || len(report.Absent) != 0 {
		t.Errorf("metrics = %d, absent = %v; want 12 and none", len(report.Metrics), report.Absent)
	}
	if report.HealthScore < 0 || report.HealthScore > 100 {
		t.Errorf("HealthScore = %v out of range", report.HealthScore)
	}
	if report.HealthLevel != analyze.HealthLevelFor(report.HealthScore) {
		t.Errorf("HealthLevel = %s for score %v", report.HealthLevel, report.HealthScore)
	}
	if report.ID == "" {
		t.Error("report has no ID")
	}

	stats := report.SourceStats
	if stats.Messages != 9 || stats.PartyALabel != "Alice" || stats.PartyBLabel != "Bob" {
		t.Errorf("SourceStats = %+v", stats)
	}
	if stats.PartyAMessages != 5 || stats.PartyBMessages != 4 {
		t.Errorf("party messages = %d/%d, want 5/4", stats.PartyAMessages, stats.PartyBMessages)
	}
	if got := stats.LastMessageAt.Sub(stats.FirstMessageAt); got != 80*time.Minute {
		t.Errorf("span = %v, want 80m", got)
	}

	if len(hist.reports) != 1 || hist.reports[0] != report {
		t.Errorf("history got %d reports, want the returned one", len(hist.reports))
	}

	// parsing, 12 classifiers, completed
	if len(updates) != 14 {
		t.Fatalf("got %d progress updates, want 14", len(updates))
	}
	if updates[0].State != StateParsing {
		t.Errorf("first state = %s, want parsing", updates[0].State)
	}
	for i := 1; i <= 12; i++ {
		if updates[i].State != StateAnalyzing || updates[i].Completed != i-1 {
			t.Errorf("update %d = %+v", i, updates[i])
		}
	}
	if updates[1].CurrentClassifier != contracts.ClassifierSentiment || updates[12].CurrentClassifier != contracts.ClassifierPositivity {
		t.Errorf("classifier order: first %s, last %s", updates[1].CurrentClassifier, updates[12].CurrentClassifier)
	}
	last := updates[len(updates)-1]
	if last.State != StateCompleted || last.Percent != 100 || last.Completed != 12 {
		t.Errorf("final update = %+v", last)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Percent < updates[i-1].Percent {
			t.Errorf("percent went backwards: %d -> %d", updates[i-1].Percent, updates[i].Percent)
		}
	}
	if o.Snapshot() != last {
		t.Errorf("Snapshot() = %+v, want %+v", o.Snapshot(), last)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	o := New()
	first, err := o.Run(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Run(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	ignore := cmpopts.IgnoreFields(contracts.Report{}, "ID", "GeneratedAt")
	if diff := cmp.Diff(first, second, ignore); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestClassifierFailureIsIsolated(t *testing.T) {
	tests := []struct {
		name    string
		replace func(analyze.Classifier) analyze.Classifier
		reason  string
	}{
		{"error", func(c analyze.Classifier) analyze.Classifier { return failing{Classifier: c, err: errors.New("lexicon missing")} }, "lexicon missing"},
		{"panic", func(c analyze.Classifier) analyze.Classifier { return failing{Classifier: c, panic: true} }, "panic: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(WithClassifiers(suiteWith(contracts.ClassifierToxicity, tt.replace)...))
			report, err := o.Run(context.Background(), input())
			if err != nil {
				t.Fatalf("Run() unexpected error: %v", err)
			}

			if _, ok := report.Metric(contracts.ClassifierToxicity); ok {
				t.Error("toxicity should be absent")
			}
			if report.Absent[contracts.ClassifierToxicity] != tt.reason {
				t.Errorf("absent reason = %q, want %q", report.Absent[contracts.ClassifierToxicity], tt.reason)
			}
			p, ok := report.Metrics[contracts.ClassifierPositivity].(*analyze.PositivityResult)
			if !ok {
				t.Fatal("positivity should be present")
			}
			if !p.LowConfidence {
				t.Error("positivity should be low confidence")
			}
			if report.HealthScore < 0 || report.HealthScore > 100 {
				t.Errorf("HealthScore = %v out of range", report.HealthScore)
			}
			if len(report.Metrics) != 11 {
				t.Errorf("metrics = %d, want 11", len(report.Metrics))
			}
		})
	}
}

func TestPositivityFailureFallsBackToUnknown(t *testing.T) {
	suite := suiteWith(contracts.ClassifierPositivity, func(c analyze.Classifier) analyze.Classifier {
		return failing{Classifier: c, err: errors.New("nope")}
	})
	report, err := New(WithClassifiers(suite...)).Run(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if report.HealthScore != 50 || report.HealthLevel != contracts.HealthUnknown || report.Trend != contracts.TrendInsufficientData {
		t.Errorf("health = %v %s %s", report.HealthScore, report.HealthLevel, report.Trend)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := New()
	report, err := o.RunWithProgress(ctx, input(), func(p Progress) {
		if p.State == StateAnalyzing && p.Completed == 2 {
			cancel()
		}
	})
	if report != nil {
		t.Error("cancelled run must not return a report")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	snap := o.Snapshot()
	if snap.State != StateFailed || snap.Completed != 3 || snap.Message != "Analysis cancelled" {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestRunInputErrors(t *testing.T) {
	o := New(WithMaxBytes(1024))

	_, err := o.Run(context.Background(), contracts.AnalysisInput{Content: "", Format: contracts.FormatPaste})
	if !errors.Is(err, normalize.ErrEmptyInput) {
		t.Errorf("empty input error = %v", err)
	}
	if snap := o.Snapshot(); snap.State != StateFailed || snap.Message != "No messages found in the conversation" {
		t.Errorf("Snapshot() = %+v", snap)
	}

	_, err = o.Run(context.Background(), contracts.AnalysisInput{Content: strings.Repeat("x", 2048), Format: contracts.FormatFile})
	if !errors.Is(err, normalize.ErrSizeExceeded) {
		t.Errorf("oversized input error = %v", err)
	}
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, doc extract.Document) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestRunExtractsRawInput(t *testing.T) {
	ext := &fakeExtractor{text: conversation}
	o := New(WithExtractor(ext))

	var states []State
	in := contracts.AnalysisInput{Raw: []byte("\x89PNG..."), SourceName: "shot.png", Format: contracts.FormatScreenshot}
	report, err := o.RunWithProgress(context.Background(), in, func(p Progress) {
		if len(states) == 0 || states[len(states)-1] != p.State {
			states = append(states, p.State)
		}
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if ext.calls != 1 || report.SourceStats.Messages != 9 {
		t.Errorf("extractor calls = %d, messages = %d", ext.calls, report.SourceStats.Messages)
	}
	want := []State{StateUploading, StateParsing, StateAnalyzing, StateCompleted}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}
}

func TestRunExtractionFailure(t *testing.T) {
	ext := &fakeExtractor{err: &extract.ExtractionError{Document: "shot.png", Err: extract.ErrNoText}}
	o := New(WithExtractor(ext))

	_, err := o.Run(context.Background(), contracts.AnalysisInput{Raw: []byte("img"), SourceName: "shot.png"})
	var extErr *extract.ExtractionError
	if !errors.As(err, &extErr) || !errors.Is(err, extract.ErrNoText) {
		t.Fatalf("error = %v, want ExtractionError(ErrNoText)", err)
	}
	if msg := o.Snapshot().Message; msg != "No readable text was found in the uploaded file" {
		t.Errorf("failure message = %q", msg)
	}
}

func TestRunRejectsOversizedRawBeforeExtraction(t *testing.T) {
	ext := &fakeExtractor{text: conversation}
	o := New(WithExtractor(ext), WithMaxBytes(10))

	_, err := o.Run(context.Background(), contracts.AnalysisInput{Raw: make([]byte, 11), SourceName: "big.pdf"})
	if !errors.Is(err, normalize.ErrSizeExceeded) {
		t.Errorf("error = %v, want ErrSizeExceeded", err)
	}
	if ext.calls != 0 {
		t.Error("extractor should not be called for oversized input")
	}
}

type fakeAnnotator struct {
	scores map[int]float64
	err    error
}

func (f fakeAnnotator) Annotate(context.Context, []contracts.CanonicalMessage) (map[int]float64, error) {
	return f.scores, f.err
}

func TestRunUsesAnnotatorScores(t *testing.T) {
	scores := map[int]float64{}
	for i := 1; i <= 9; i++ {
		scores[i] = -0.9
	}
	report, err := New(WithAnnotator(fakeAnnotator{scores: scores})).Run(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	s := report.Metrics[contracts.ClassifierSentiment].(*analyze.SentimentResult)
	if s.Label != "negative" || s.Score != -0.9 {
		t.Errorf("sentiment = %.2f %s, want -0.90 negative", s.Score, s.Label)
	}
}

func TestRunSurvivesAnnotatorFailure(t *testing.T) {
	o := New(WithAnnotator(fakeAnnotator{err: errors.New("quota exceeded")}))
	var sawEnriching bool
	report, err := o.RunWithProgress(context.Background(), input(), func(p Progress) {
		sawEnriching = sawEnriching || p.State == StateEnriching
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if !sawEnriching {
		t.Error("enriching state was never reported")
	}
	if s := report.Metrics[contracts.ClassifierSentiment].(*analyze.SentimentResult); s.Label != "positive" {
		t.Errorf("lexicon sentiment = %s, want positive", s.Label)
	}
}

func TestHistoryFailureDoesNotFailRun(t *testing.T) {
	hist := &recorder{err: errors.New("disk full")}
	if _, err := New(WithHistory(hist)).Run(context.Background(), input()); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}
