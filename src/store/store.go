// Package store persists asynchronous analysis jobs and the inputs they analyze.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rapport-agent/src/contracts"
)

var (
	// ErrNotFound is returned for an unknown job ID.
	ErrNotFound = errors.New("job not found")

	// ErrDuplicate is returned when a job ID is created twice.
	ErrDuplicate = errors.New("job already exists")

	// ErrJobTerminal is returned for any write to a completed or failed job.
	ErrJobTerminal = errors.New("job is terminal")

	// ErrProgressRegression is returned when a progress write would lower the percent.
	ErrProgressRegression = errors.New("job progress cannot decrease")

	// ErrInvalidTransition is returned for status changes the job state machine forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrJobActive is returned when deleting a job that has not finished.
	ErrJobActive = errors.New("job has not finished")
)

// JobStore defines the interface for persisting analysis jobs.
//
// Implementations enforce the job state machine: pending -> processing ->
// completed | error, with pending -> error allowed for jobs that never start.
// Terminal jobs are immutable and progress never decreases.
type JobStore interface {
	// Create persists a new pending job together with its input.
	Create(ctx context.Context, job *contracts.AnalysisJob, in contracts.AnalysisInput) error

	// Get returns a copy of the job.
	Get(ctx context.Context, jobID string) (*contracts.AnalysisJob, error)

	// Input returns the input the job was submitted with.
	Input(ctx context.Context, jobID string) (contracts.AnalysisInput, error)

	// Start moves a pending job to processing.
	Start(ctx context.Context, jobID string, at time.Time) error

	// SetProgress records progress on an unfinished job.
	SetProgress(ctx context.Context, jobID string, percent int, message string) error

	// Complete stores the report and marks the job completed.
	Complete(ctx context.Context, jobID string, report *contracts.Report, at time.Time) error

	// Fail marks the job as errored with a user-facing message.
	Fail(ctx context.Context, jobID string, message string, at time.Time) error

	// Delete removes a terminal job and its input.
	Delete(ctx context.Context, jobID string) error

	// Close releases the store's resources.
	Close() error
}

// ValidateTransition reports whether a job may move from one status to another.
func ValidateTransition(from, to contracts.JobStatus) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, from)
	}
	switch {
	case from == contracts.JobPending && to == contracts.JobProcessing,
		from == contracts.JobPending && to == contracts.JobError,
		from == contracts.JobProcessing && to.Terminal():
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Messages stored alongside status changes.
const (
	messageQueued    = "Queued"
	messageStarted   = "Starting analysis"
	messageCompleted = "Analysis complete"
	messageFailed    = "Analysis failed"
)

// Open returns the JobStore for driver: "memory" (or empty), "sqlite" or "postgres".
func Open(driver, dsn string) (JobStore, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
