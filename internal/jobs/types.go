package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/finsight/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeSaveSnapshot writes the full ledger snapshot to the durable store.
	JobTypeSaveSnapshot JobType = "save_snapshot"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusSkipped indicates a newer snapshot was already written.
	JobStatusSkipped JobStatus = "skipped"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries is used when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// SaveSnapshotJob carries one full snapshot to be persisted.
type SaveSnapshotJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Seq orders snapshots; a higher value is always newer.
	Seq uint64 `json:"seq"`

	// Snapshot is the state to write. It is not kept by the job store.
	Snapshot domain.Snapshot `json:"-"`

	AccountCount     int `json:"account_count"`
	TransactionCount int `json:"transaction_count"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues snapshot saves.
type Publisher interface {
	// PublishSaveSnapshot enqueues a snapshot save.
	PublishSaveSnapshot(ctx context.Context, job *SaveSnapshotJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer processes queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs, finishes queued ones and waits for the workers.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. It returns an error if the job should be retried.
// Returning ErrSuperseded marks the job skipped instead of completed.
type JobHandler func(ctx context.Context, job *SaveSnapshotJob) error

// JobStore records job state for status queries.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SaveSnapshotJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SaveSnapshotJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SaveSnapshotJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
