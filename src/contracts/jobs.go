package contracts

import "time"

// JobStatus is the state of an asynchronous analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// Rank orders statuses along the job state machine.
func (s JobStatus) Rank() int {
	switch s {
	case JobPending:
		return 0
	case JobProcessing:
		return 1
	case JobCompleted, JobError:
		return 2
	}
	return -1
}

// SourceDescriptor summarizes what was submitted without carrying the content.
type SourceDescriptor struct {
	Format Format `json:"format"`
	Name   string `json:"name,omitempty"`
	Bytes  int64  `json:"bytes"`
}

// AnalysisJob is a durable, pollable unit of asynchronous analysis.
type AnalysisJob struct {
	JobID           string           `json:"job_id"`
	Status          JobStatus        `json:"status"`
	Source          SourceDescriptor `json:"source"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	ProgressPercent int              `json:"progress_percent"`
	ProgressMessage string           `json:"progress_message"`
	// Set iff Status is error.
	ErrorMessage string `json:"error_message,omitempty"`
	// Set iff Status is completed.
	Result *Report `json:"result,omitempty"`
}

// Clone returns a copy that shares no pointers with j, except the immutable Result.
func (j *AnalysisJob) Clone() *AnalysisJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobRequest is published to the job topic. The input itself stays in the job store
// so that large conversations never travel through the broker.
type JobRequest struct {
	JobID     string `json:"job_id"`
	Timestamp string `json:"timestamp"`
}

// Topic names used by the job manager.
const (
	// TopicJobs carries JobRequest records keyed by job ID.
	TopicJobs = "rapport.jobs"

	// GroupJobWorkers is the consumer group shared by all job workers.
	GroupJobWorkers = "rapport-workers"
)
