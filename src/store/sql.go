package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rapport-agent/src/contracts"
)

// schema is shared by the SQLite and Postgres backends. Timestamps are stored
// as RFC 3339 text and the input and report as JSON.
const schema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	job_id           TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	source_format    TEXT NOT NULL,
	source_name      TEXT NOT NULL DEFAULT '',
	source_bytes     BIGINT NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	started_at       TEXT,
	completed_at     TEXT,
	progress_percent INTEGER NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	result           TEXT,
	input            TEXT NOT NULL
)`

// sqlStore implements JobStore over database/sql. Every state change is a
// single conditional UPDATE, so concurrent writers cannot break the state machine.
type sqlStore struct {
	db *sql.DB
	// postgres selects $n placeholders instead of ?.
	postgres bool
}

func newSQLStore(db *sql.DB, postgres bool) (*sqlStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &sqlStore{db: db, postgres: postgres}, nil
}

// rebind rewrites ? placeholders for the active dialect.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create persists a new pending job together with its input.
func (s *sqlStore) Create(ctx context.Context, job *contracts.AnalysisJob, in contracts.AnalysisInput) error {
	input, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}
	message := job.ProgressMessage
	if message == "" {
		message = messageQueued
	}

	rows, err := s.exec(ctx, `
		INSERT INTO analysis_jobs (
			job_id, status, source_format, source_name, source_bytes,
			created_at, progress_percent, progress_message, input
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, string(contracts.JobPending), string(job.Source.Format), job.Source.Name, job.Source.Bytes,
		formatTime(job.CreatedAt), job.ProgressPercent, message, string(input),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, job.JobID)
	}
	return nil
}

// Get returns the job.
func (s *sqlStore) Get(ctx context.Context, jobID string) (*contracts.AnalysisJob, error) {
	var (
		job                            contracts.AnalysisJob
		status, format                 string
		createdAt                      string
		startedAt, completedAt, result sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT job_id, status, source_format, source_name, source_bytes,
		       created_at, started_at, completed_at,
		       progress_percent, progress_message, error_message, result
		FROM analysis_jobs
		WHERE job_id = ?`), jobID).Scan(
		&job.JobID, &status, &format, &job.Source.Name, &job.Source.Bytes,
		&createdAt, &startedAt, &completedAt,
		&job.ProgressPercent, &job.ProgressMessage, &job.ErrorMessage, &result,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = contracts.JobStatus(status)
	job.Source.Format = contracts.Format(format)
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if job.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if job.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, fmt.Errorf("failed to parse completed_at: %w", err)
	}
	if result.Valid && result.String != "" {
		job.Result = &contracts.Report{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return &job, nil
}

// Input returns the input the job was submitted with.
func (s *sqlStore) Input(ctx context.Context, jobID string) (contracts.AnalysisInput, error) {
	var raw string
	var in contracts.AnalysisInput
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT input FROM analysis_jobs WHERE job_id = ?`), jobID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return in, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return in, fmt.Errorf("failed to get input: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return in, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	return in, nil
}

// explain turns a conditional write that matched no row into the reason why.
func (s *sqlStore) explain(ctx context.Context, jobID string, to contracts.JobStatus) error {
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT status FROM analysis_jobs WHERE job_id = ?`), jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}
	if err := ValidateTransition(contracts.JobStatus(status), to); err != nil {
		return err
	}
	// The row changed between the UPDATE and this read.
	return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, jobID)
}

// Start moves a pending job to processing.
func (s *sqlStore) Start(ctx context.Context, jobID string, at time.Time) error {
	rows, err := s.exec(ctx, `
		UPDATE analysis_jobs
		SET status = ?, started_at = ?, progress_message = ?
		WHERE job_id = ? AND status = ?`,
		string(contracts.JobProcessing), formatTime(at), messageStarted,
		jobID, string(contracts.JobPending),
	)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	if rows == 0 {
		return s.explain(ctx, jobID, contracts.JobProcessing)
	}
	return nil
}

// SetProgress records progress on an unfinished job.
func (s *sqlStore) SetProgress(ctx context.Context, jobID string, percent int, message string) error {
	rows, err := s.exec(ctx, `
		UPDATE analysis_jobs
		SET progress_percent = ?, progress_message = ?
		WHERE job_id = ? AND status IN (?, ?) AND progress_percent <= ?`,
		percent, message,
		jobID, string(contracts.JobPending), string(contracts.JobProcessing), percent,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if rows > 0 {
		return nil
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, jobID)
	}
	return fmt.Errorf("%w: %d < %d", ErrProgressRegression, percent, job.ProgressPercent)
}

// Complete stores the report and marks the job completed.
func (s *sqlStore) Complete(ctx context.Context, jobID string, report *contracts.Report, at time.Time) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	rows, err := s.exec(ctx, `
		UPDATE analysis_jobs
		SET status = ?, completed_at = ?, progress_percent = 100, progress_message = ?, result = ?
		WHERE job_id = ? AND status = ?`,
		string(contracts.JobCompleted), formatTime(at), messageCompleted, string(data),
		jobID, string(contracts.JobProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if rows == 0 {
		return s.explain(ctx, jobID, contracts.JobCompleted)
	}
	return nil
}

// Fail marks the job as errored.
func (s *sqlStore) Fail(ctx context.Context, jobID string, message string, at time.Time) error {
	rows, err := s.exec(ctx, `
		UPDATE analysis_jobs
		SET status = ?, completed_at = ?, progress_message = ?, error_message = ?
		WHERE job_id = ? AND status IN (?, ?)`,
		string(contracts.JobError), formatTime(at), messageFailed, message,
		jobID, string(contracts.JobPending), string(contracts.JobProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if rows == 0 {
		return s.explain(ctx, jobID, contracts.JobError)
	}
	return nil
}

// Delete removes a terminal job and its input.
func (s *sqlStore) Delete(ctx context.Context, jobID string) error {
	rows, err := s.exec(ctx, `
		DELETE FROM analysis_jobs
		WHERE job_id = ? AND status IN (?, ?)`,
		jobID, string(contracts.JobCompleted), string(contracts.JobError),
	)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if rows > 0 {
		return nil
	}
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", ErrJobActive, jobID, job.Status)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}
