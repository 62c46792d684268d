// Package pipeline sequences one analysis run: extraction, normalization,
// optional enrichment, the classifier suite and report synthesis.
// It is used directly by the CLI and the HTTP API for synchronous analysis
// and by the job manager's workers for asynchronous analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rapport-agent/src/analyze"
	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
	"rapport-agent/src/logger"
	"rapport-agent/src/normalize"
	"rapport-agent/src/ranking"
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateParsing   State = "parsing"
	StateEnriching State = "enriching"
	StateAnalyzing State = "analyzing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	State             State                  `json:"state"`
	CurrentClassifier contracts.ClassifierID `json:"current_classifier,omitempty"`
	// Classifiers finished so far, successful or not.
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
	Message   string `json:"message"`
}

// ProgressFunc receives every progress change on the running goroutine.
type ProgressFunc func(Progress)

// Annotator precomputes per-message polarity keyed by SequenceID.
type Annotator interface {
	Annotate(ctx context.Context, msgs []contracts.CanonicalMessage) (map[int]float64, error)
}

// Recorder keeps completed reports.
type Recorder interface {
	Append(ctx context.Context, r *contracts.Report) error
}

// ClassifierError records why a classifier produced no result.
type ClassifierError struct {
	ID  contracts.ClassifierID
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s failed: %v", e.ID, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// Orchestrator runs analyses. A single Orchestrator may serve concurrent runs;
// Snapshot then reports whichever run changed state last.
type Orchestrator struct {
	classifiers []analyze.Classifier
	extractor   extract.Extractor
	annotator   Annotator
	history     Recorder
	maxBytes    int64
	logger      logger.Logger
	now         func() time.Time

	mu       sync.Mutex
	progress Progress
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifiers replaces the default suite. Order is preserved.
func WithClassifiers(cs ...analyze.Classifier) Option {
	return func(o *Orchestrator) { o.classifiers = cs }
}

// WithExtractor sets the collaborator used for Raw inputs.
func WithExtractor(e extract.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithAnnotator enables the enrichment stage.
func WithAnnotator(a Annotator) Option {
	return func(o *Orchestrator) { o.annotator = a }
}

// WithHistory appends every completed report to r.
func WithHistory(r Recorder) Option {
	return func(o *Orchestrator) { o.history = r }
}

// WithMaxBytes sets the input size limit.
func WithMaxBytes(n int64) Option {
	return func(o *Orchestrator) { o.maxBytes = n }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator with the default classifier suite and a
// passthrough extractor.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		classifiers: analyze.Default(),
		extractor:   extract.Passthrough{},
		maxBytes:    normalize.DefaultMaxBytes,
		logger:      logger.NewSilentLogger(),
		now:         time.Now,
		progress:    Progress{State: StateIdle, Message: "Waiting"},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.progress.Total = len(o.classifiers)
	return o
}

// Total returns the number of classifiers a run executes.
func (o *Orchestrator) Total() int {
	return len(o.classifiers)
}

// Snapshot returns the latest progress.
func (o *Orchestrator) Snapshot() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Run analyzes one input synchronously.
func (o *Orchestrator) Run(ctx context.Context, in contracts.AnalysisInput) (*contracts.Report, error) {
	return o.RunWithProgress(ctx, in, nil)
}

// RunWithProgress is Run with a progress callback.
func (o *Orchestrator) RunWithProgress(ctx context.Context, in contracts.AnalysisInput, onProgress ProgressFunc) (*contracts.Report, error) {
	r := &run{o: o, onProgress: onProgress, total: len(o.classifiers)}
	report, err := r.execute(ctx, in)
	if err != nil {
		r.set(Progress{State: StateFailed, Completed: r.completed, Percent: r.percent, Message: failureMessage(err)})
		o.logger.Error("[Orchestrator] Run failed: %v", err)
		return nil, err
	}
	r.set(Progress{State: StateCompleted, Completed: r.total, Percent: 100, Message: "Analysis complete"})
	return report, nil
}

// run holds the per-run state so one Orchestrator can serve several runs.
type run struct {
	o          *Orchestrator
	onProgress ProgressFunc
	total      int
	completed  int
	percent    int
}

func (r *run) set(p Progress) {
	p.Total = r.total
	// Percent never goes backwards within a run.
	if p.Percent < r.percent {
		p.Percent = r.percent
	}
	r.percent = p.Percent

	r.o.mu.Lock()
	r.o.progress = p
	r.o.mu.Unlock()
	if r.onProgress != nil {
		r.onProgress(p)
	}
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis cancelled: %w", err)
	}
	return nil
}

func (r *run) execute(ctx context.Context, in contracts.AnalysisInput) (*contracts.Report, error) {
	o := r.o
	log := o.logger

	if err := normalize.CheckSize(in.Size(), o.maxBytes); err != nil {
		return nil, err
	}

	content := in.Content
	if in.NeedsExtraction() {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		r.set(Progress{State: StateUploading, Percent: 0, Message: "Extracting text"})
		log.Info("[Orchestrator] Extracting text from %s (%d bytes)", in.SourceName, len(in.Raw))
		text, err := o.extractor.Extract(ctx, extract.Document{Name: in.SourceName, Data: in.Raw})
		if err != nil {
			if ctxErr := cancelled(ctx); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("extract %s: %w", in.SourceName, err)
		}
		content = text
	}

	r.set(Progress{State: StateParsing, Percent: 5, Message: "Reading messages"})
	tl, err := normalize.Parse(content, in.Format, normalize.Options{
		MaxBytes: o.maxBytes,
		Hints:    in.Personalization,
	})
	if err != nil {
		return nil, err
	}
	log.Info("[Orchestrator] Parsed %d messages from %d lines (%d dropped)", len(tl.Messages), tl.Lines, tl.DroppedLines)

	input := analyze.Input{
		Messages:        tl.Messages,
		Personalization: in.Personalization,
		Results:         make(map[contracts.ClassifierID]contracts.MetricResult, r.total),
	}

	if o.annotator != nil {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		r.set(Progress{State: StateEnriching, Percent: 8, Message: "Scoring message tone"})
		polarity, err := o.annotator.Annotate(ctx, tl.Messages)
		switch {
		case ctx.Err() != nil:
			return nil, cancelled(ctx)
		case err != nil:
			// Classifiers fall back to the lexicon scorer.
			log.Error("[Orchestrator] Enrichment failed, using lexicon scores: %v", err)
		default:
			input.Polarity = polarity
		}
	}

	absent := make(map[contracts.ClassifierID]string)
	for i, c := range o.classifiers {
		if err := cancelled(ctx); err != nil {
			return nil, err
		}
		r.set(Progress{
			State:             StateAnalyzing,
			CurrentClassifier: c.ID(),
			Completed:         i,
			Percent:           analyzingPercent(i, r.total),
			Message:           fmt.Sprintf("Running %s (%d/%d)", c.Name(), i+1, r.total),
		})

		res, err := runClassifier(c, input)
		if err != nil {
			cerr := &ClassifierError{ID: c.ID(), Err: err}
			log.Error("[Orchestrator] %v", cerr)
			absent[c.ID()] = err.Error()
		} else {
			input.Results[c.ID()] = res
		}
		r.completed = i + 1
	}

	report := o.synthesize(in, tl, input.Results, absent)

	if o.history != nil {
		if err := o.history.Append(ctx, report); err != nil {
			log.Error("[Orchestrator] Failed to record report %s: %v", report.ID, err)
		}
	}
	log.Info("[Orchestrator] Report %s: health %.1f (%s), %d insights", report.ID, report.HealthScore, report.HealthLevel, len(report.Insights))
	return report, nil
}

func analyzingPercent(done, total int) int {
	if total == 0 {
		return 95
	}
	return 10 + 85*done/total
}

// runClassifier isolates a classifier failure, panics included.
func runClassifier(c analyze.Classifier, in analyze.Input) (res contracts.MetricResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	res, err = c.Analyze(in)
	if err == nil && res == nil {
		err = errors.New("no result")
	}
	return res, err
}

func (o *Orchestrator) synthesize(in contracts.AnalysisInput, tl *normalize.Timeline, results map[contracts.ClassifierID]contracts.MetricResult, absent map[contracts.ClassifierID]string) *contracts.Report {
	report := &contracts.Report{
		ID:              uuid.NewString(),
		GeneratedAt:     o.now().UTC(),
		SourceStats:     sourceStats(in, tl),
		HealthScore:     50,
		HealthLevel:     contracts.HealthUnknown,
		Trend:           contracts.TrendInsufficientData,
		Metrics:         contracts.Metrics(results),
		Absent:          absent,
		Personalization: in.Personalization,
	}
	if p, ok := results[contracts.ClassifierPositivity].(*analyze.PositivityResult); ok {
		report.HealthScore = p.Score
		report.HealthLevel = p.Level
		report.Trend = p.Trend
	}
	report.Insights = ranking.DeriveInsights(report.Metrics, absent, in.Personalization)
	report.Recommendations = ranking.DeriveRecommendations(report.Metrics, absent, in.Personalization)
	return report
}

func sourceStats(in contracts.AnalysisInput, tl *normalize.Timeline) contracts.SourceStats {
	stats := contracts.SourceStats{
		Format:         in.Format,
		Bytes:          in.Size(),
		Lines:          tl.Lines,
		DroppedLines:   tl.DroppedLines,
		Messages:       len(tl.Messages),
		PartyALabel:    tl.PartyLabel(contracts.PartyA),
		PartyBLabel:    tl.PartyLabel(contracts.PartyB),
		PartyAMessages: tl.Count(contracts.PartyA),
		PartyBMessages: tl.Count(contracts.PartyB),
	}
	if n := len(tl.Messages); n > 0 {
		stats.FirstMessageAt = tl.Messages[0].Timestamp
		stats.LastMessageAt = tl.Messages[n-1].Timestamp
	}
	return stats
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Analysis cancelled"
	}
	if msg := extract.UserMessage(err); msg != "" {
		return msg
	}
	return "Analysis failed"
}
