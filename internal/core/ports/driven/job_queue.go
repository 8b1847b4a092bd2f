package driven

import (
	"context"

	"github.com/folio-labs/folio-core/internal/core/domain"
)

// JobQueue handles durable background job queuing and dispatch.
// Implementations can use Redis (preferred) or Postgres (fallback).
//
// Enqueue is idempotent per job identity ("<kind>-<documentId>"): while a
// job with that identity is pending or processing, a second Enqueue is a
// no-op. Callers may therefore enqueue unconditionally.
type JobQueue interface {
	// Enqueue adds a job unless one with the same identity is outstanding.
	// Returns (true, nil) if the job was queued, (false, nil) if an
	// outstanding job made it a no-op.
	Enqueue(ctx context.Context, job *domain.Job) (bool, error)

	// DequeueWithTimeout retrieves the next due job, waiting up to timeout
	// seconds. Returns nil, nil if none became available. The returned job
	// is marked processing and will not be delivered to another worker.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error)

	// Ack acknowledges successful completion of a job.
	Ack(ctx context.Context, jobID string) error

	// Nack indicates processing failed. The job is rescheduled with
	// exponential backoff until its attempt ceiling, then marked failed.
	Nack(ctx context.Context, jobID string, reason string) error

	// Fail marks a job permanently failed, bypassing the retry policy.
	// Used for fatal errors such as a missing document record.
	Fail(ctx context.Context, jobID string, reason string) error

	// GetJob retrieves a job by identity key (for status checking).
	// Returns nil, nil if no such job is recorded.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// PurgeJobs prunes terminal job records, keeping at most keep records
	// and none older than olderThanSeconds. Returns the number removed.
	PurgeJobs(ctx context.Context, olderThanSeconds, keep int) (int, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	// PendingCount is the number of jobs waiting to be processed
	PendingCount int64 `json:"pending_count"`

	// ProcessingCount is the number of jobs currently being processed
	ProcessingCount int64 `json:"processing_count"`

	// CompletedCount is the number of successfully completed jobs retained
	CompletedCount int64 `json:"completed_count"`

	// FailedCount is the number of jobs that failed after all retries
	FailedCount int64 `json:"failed_count"`
}
