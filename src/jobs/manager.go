// Package jobs runs analyses out-of-band. Submissions are persisted as pending
// jobs, queued on the broker, and picked up by a pool of workers that mirror
// the orchestrator's progress into the job store.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rapport-agent/src/broker"
	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
	"rapport-agent/src/logger"
	"rapport-agent/src/pipeline"
	"rapport-agent/src/store"
)

// GenericFailure is the message stored for failures that are not the
// submitter's fault.
const GenericFailure = "analysis failed unexpectedly"

// Runner executes one analysis with progress reporting. *pipeline.Orchestrator
// satisfies it.
type Runner interface {
	RunWithProgress(ctx context.Context, in contracts.AnalysisInput, onProgress pipeline.ProgressFunc) (*contracts.Report, error)
}

// Manager accepts submissions and runs them on a worker pool.
type Manager struct {
	store       store.JobStore
	broker      broker.Broker
	runner      Runner
	concurrency int
	logger      logger.Logger
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithConcurrency sets the number of workers. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.concurrency = n }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. Workers start with Run.
func NewManager(s store.JobStore, b broker.Broker, r Runner, opts ...Option) *Manager {
	m := &Manager{
		store:       s,
		broker:      b,
		runner:      r,
		concurrency: 1,
		logger:      logger.NewSilentLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m
}

// Submit persists a pending job for in and queues it. It returns as soon as
// the job is queued; the analysis itself happens on a worker.
func (m *Manager) Submit(ctx context.Context, in contracts.AnalysisInput) (string, error) {
	if !in.Format.Valid() {
		return "", fmt.Errorf("unknown input format %q", in.Format)
	}

	jobID := uuid.NewString()
	now := m.now().UTC()
	job := &contracts.AnalysisJob{
		JobID:  jobID,
		Status: contracts.JobPending,
		Source: contracts.SourceDescriptor{
			Format: in.Format,
			Name:   in.SourceName,
			Bytes:  in.Size(),
		},
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, job, in); err != nil {
		return "", fmt.Errorf("failed to persist job: %w", err)
	}

	data, err := json.Marshal(contracts.JobRequest{
		JobID:     jobID,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job request: %w", err)
	}
	if err := m.broker.Publish(ctx, contracts.TopicJobs, jobID, data); err != nil {
		// Never leave a pending job that no worker will see.
		if ferr := m.store.Fail(context.WithoutCancel(ctx), jobID, GenericFailure, m.now()); ferr != nil {
			m.logger.Error("[JobManager] Failed to mark unqueued job %s: %v", jobID, ferr)
		}
		return "", fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("[JobManager] Submitted job %s (%s, %d bytes)", jobID, in.Format, in.Size())
	return jobID, nil
}

// Status returns a snapshot of the job.
func (m *Manager) Status(ctx context.Context, jobID string) (*contracts.AnalysisJob, error) {
	return m.store.Get(ctx, jobID)
}

// Acknowledge deletes a finished job once the caller has fetched it.
func (m *Manager) Acknowledge(ctx context.Context, jobID string) error {
	return m.store.Delete(ctx, jobID)
}

// Run starts the workers and blocks until ctx is cancelled or the broker
// closes. Cancellation is a clean shutdown and returns nil.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.concurrency; i++ {
		queue, err := m.broker.Subscribe(gctx, contracts.TopicJobs, contracts.GroupJobWorkers)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicJobs, err)
		}
		worker := i + 1
		g.Go(func() error {
			return m.work(gctx, worker, queue)
		})
	}
	m.logger.Info("[JobManager] %d worker(s) listening on '%s'", m.concurrency, contracts.TopicJobs)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) work(ctx context.Context, worker int, queue <-chan broker.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-queue:
			if !ok {
				return nil
			}
			m.handle(ctx, worker, msg)
		}
	}
}

func (m *Manager) handle(ctx context.Context, worker int, msg broker.Message) {
	var req contracts.JobRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		m.logger.Error("[JobManager] Worker %d: dropping malformed job request: %v", worker, err)
		return
	}
	m.process(ctx, worker, req.JobID)
}

// process runs one job to a terminal state. Only the worker that moved the
// job to processing writes to it afterwards.
func (m *Manager) process(ctx context.Context, worker int, jobID string) {
	// Terminal writes must land even while shutting down.
	writeCtx := context.WithoutCancel(ctx)

	if err := m.store.Start(writeCtx, jobID, m.now()); err != nil {
		// Redelivered, acknowledged or already failed: someone else owns it.
		m.logger.Info("[JobManager] Worker %d: skipping job %s: %v", worker, jobID, err)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("[JobManager] Worker %d: job %s panicked: %v", worker, jobID, rec)
			m.fail(writeCtx, jobID, GenericFailure)
		}
	}()

	in, err := m.store.Input(writeCtx, jobID)
	if err != nil {
		m.logger.Error("[JobManager] Worker %d: loading input for %s: %v", worker, jobID, err)
		m.fail(writeCtx, jobID, GenericFailure)
		return
	}

	m.logger.Info("[JobManager] Worker %d: processing job %s", worker, jobID)
	report, err := m.runner.RunWithProgress(ctx, in, func(p pipeline.Progress) {
		m.mirror(writeCtx, jobID, p)
	})
	if err != nil {
		m.logger.Error("[JobManager] Worker %d: job %s failed: %v", worker, jobID, err)
		m.fail(writeCtx, jobID, FailureMessage(err))
		return
	}

	if err := m.store.Complete(writeCtx, jobID, report, m.now()); err != nil {
		m.logger.Error("[JobManager] Worker %d: storing result for %s: %v", worker, jobID, err)
		m.fail(writeCtx, jobID, GenericFailure)
		return
	}
	m.logger.Info("[JobManager] Worker %d: job %s completed (health %.1f)", worker, jobID, report.HealthScore)
}

// mirror copies orchestrator progress into the job record.
func (m *Manager) mirror(ctx context.Context, jobID string, p pipeline.Progress) {
	if p.State == pipeline.StateFailed || p.State == pipeline.StateCompleted {
		return
	}
	err := m.store.SetProgress(ctx, jobID, JobPercent(p.Completed, p.Total), p.Message)
	if err != nil && !errors.Is(err, store.ErrProgressRegression) {
		m.logger.Error("[JobManager] Progress update for %s: %v", jobID, err)
	}
}

func (m *Manager) fail(ctx context.Context, jobID, message string) {
	if err := m.store.Fail(ctx, jobID, message, m.now()); err != nil {
		m.logger.Error("[JobManager] Failed to record failure for %s: %v", jobID, err)
	}
}

// JobPercent maps classifier progress into the 5..95 band; 100 is reserved
// for completion.
func JobPercent(completed, total int) int {
	if total <= 0 {
		return 5
	}
	if completed > total {
		completed = total
	}
	return 5 + 90*completed/total
}

// FailureMessage is the error message stored on a failed job. Problems with
// the submission itself (input and extraction errors) are passed through;
// anything else is generic.
func FailureMessage(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Analysis cancelled"
	}
	if msg := extract.UserMessage(err); msg != "" {
		return msg
	}
	return GenericFailure
}
