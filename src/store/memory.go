package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rapport-agent/src/contracts"
)

// MemoryStore is an in-memory implementation of JobStore.
// Used for local mode, the MCP server and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*contracts.AnalysisJob
	inputs map[string]contracts.AnalysisInput
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*contracts.AnalysisJob),
		inputs: make(map[string]contracts.AnalysisInput),
	}
}

// Create persists a new pending job together with its input.
func (s *MemoryStore) Create(ctx context.Context, job *contracts.AnalysisJob, in contracts.AnalysisInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, job.JobID)
	}

	stored := job.Clone()
	stored.Status = contracts.JobPending
	if stored.ProgressMessage == "" {
		stored.ProgressMessage = messageQueued
	}
	s.jobs[job.JobID] = stored

	in.Raw = append([]byte(nil), in.Raw...)
	s.inputs[job.JobID] = in
	return nil
}

// Get returns a copy of the job.
func (s *MemoryStore) Get(ctx context.Context, jobID string) (*contracts.AnalysisJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job.Clone(), nil
}

// Input returns the input the job was submitted with.
func (s *MemoryStore) Input(ctx context.Context, jobID string) (contracts.AnalysisInput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, exists := s.inputs[jobID]
	if !exists {
		return contracts.AnalysisInput{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	in.Raw = append([]byte(nil), in.Raw...)
	return in, nil
}

// Start moves a pending job to processing.
func (s *MemoryStore) Start(ctx context.Context, jobID string, at time.Time) error {
	return s.transition(jobID, contracts.JobProcessing, func(job *contracts.AnalysisJob) {
		t := at.UTC()
		job.StartedAt = &t
		job.ProgressMessage = messageStarted
	})
}

// SetProgress records progress on an unfinished job.
func (s *MemoryStore) SetProgress(ctx context.Context, jobID string, percent int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, jobID)
	}
	if percent < job.ProgressPercent {
		return fmt.Errorf("%w: %d < %d", ErrProgressRegression, percent, job.ProgressPercent)
	}
	job.ProgressPercent = percent
	job.ProgressMessage = message
	return nil
}

// Complete stores the report and marks the job completed.
func (s *MemoryStore) Complete(ctx context.Context, jobID string, report *contracts.Report, at time.Time) error {
	return s.transition(jobID, contracts.JobCompleted, func(job *contracts.AnalysisJob) {
		t := at.UTC()
		job.CompletedAt = &t
		job.ProgressPercent = 100
		job.ProgressMessage = messageCompleted
		job.Result = report
	})
}

// Fail marks the job as errored.
func (s *MemoryStore) Fail(ctx context.Context, jobID string, message string, at time.Time) error {
	return s.transition(jobID, contracts.JobError, func(job *contracts.AnalysisJob) {
		t := at.UTC()
		job.CompletedAt = &t
		job.ProgressMessage = messageFailed
		job.ErrorMessage = message
	})
}

func (s *MemoryStore) transition(jobID string, to contracts.JobStatus, apply func(*contracts.AnalysisJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err := ValidateTransition(job.Status, to); err != nil {
		return err
	}
	job.Status = to
	apply(job)
	return nil
}

// Delete removes a terminal job and its input.
func (s *MemoryStore) Delete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobActive, jobID, job.Status)
	}
	delete(s.jobs, jobID)
	delete(s.inputs, jobID)
	return nil
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
