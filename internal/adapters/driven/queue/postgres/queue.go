package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// Ensure Queue implements JobQueue
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue using PostgreSQL with SKIP LOCKED for reliable
// job processing. This is the fallback queue when Redis is not available.
//
// De-duplication rides on the primary key: the job ID is the identity key
// "<kind>-<documentId>", so an INSERT ... ON CONFLICT that only touches
// terminal rows makes Enqueue a no-op while a job is outstanding.
type Queue struct {
	db *sql.DB
}

// NewQueue creates a new PostgreSQL-backed job queue.
// Assumes the jobs table has been created via the schema.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a job unless one with the same identity is outstanding.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	// Terminal rows are overwritten with the fresh job; pending/processing
	// rows win the conflict and the insert affects zero rows.
	query := `
		INSERT INTO jobs (
			id, kind, document_id, payload, status,
			attempts, max_attempts, error, created_at, updated_at, scheduled_for
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			started_at = NULL,
			completed_at = NULL,
			scheduled_for = EXCLUDED.scheduled_for
		WHERE jobs.status IN ($12, $13)
	`

	result, err := q.db.ExecContext(ctx, query,
		job.ID,
		job.Kind,
		job.DocumentID,
		payload,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
		job.ScheduledFor,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rows > 0, nil
}

// DequeueWithTimeout retrieves the next due job, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	return q.dequeue(ctx, timeout)
}

func (q *Queue) dequeue(ctx context.Context, timeoutSeconds int) (*domain.Job, error) {
	// Use a transaction to atomically select and update
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Select next available job with SKIP LOCKED to avoid contention
	selectQuery := `
		SELECT id, kind, document_id, payload, status,
			   attempts, max_attempts, error, created_at, updated_at,
			   started_at, completed_at, scheduled_for
		FROM jobs
		WHERE status = $1
		  AND scheduled_for <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	job, err := scanJob(tx.QueryRowContext(ctx, selectQuery, domain.JobStatusPending))
	if err == sql.ErrNoRows {
		_ = tx.Rollback()

		// If timeout specified, wait and retry once
		if timeoutSeconds > 0 {
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(time.Duration(timeoutSeconds) * time.Second):
				return q.dequeue(ctx, 0)
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	now := time.Now()
	updateQuery := `
		UPDATE jobs
		SET status = $1, started_at = $2, updated_at = $3, attempts = attempts + 1
		WHERE id = $4
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		domain.JobStatusProcessing,
		now,
		now,
		job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	job.Attempts++

	return job, nil
}

// Ack marks a job as completed, which also releases its identity: the
// terminal row no longer blocks a fresh Enqueue.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	now := time.Now()
	query := `
		UPDATE jobs
		SET status = $1, completed_at = $2, updated_at = $3, error = ''
		WHERE id = $4
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		now,
		now,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Nack marks a job as failed, scheduling a retry with backoff until
// the attempt ceiling.
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return domain.ErrNotFound
	}

	now := time.Now()

	if job.CanRetry() {
		backoff := domain.JobBackoffBase << (job.Attempts - 1)
		if backoff > domain.JobBackoffCap || backoff <= 0 {
			backoff = domain.JobBackoffCap
		}

		query := `
			UPDATE jobs
			SET status = $1, error = $2, updated_at = $3, scheduled_for = $4
			WHERE id = $5
		`
		_, err = q.db.ExecContext(ctx, query,
			domain.JobStatusPending,
			reason,
			now,
			now.Add(backoff),
			jobID,
		)
	} else {
		query := `
			UPDATE jobs
			SET status = $1, error = $2, updated_at = $3
			WHERE id = $4
		`
		_, err = q.db.ExecContext(ctx, query,
			domain.JobStatusFailed,
			reason,
			now,
			jobID,
		)
	}

	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	return nil
}

// Fail marks a job permanently failed, bypassing the retry policy.
func (q *Queue) Fail(ctx context.Context, jobID string, reason string) error {
	query := `
		UPDATE jobs
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobStatusFailed,
		reason,
		time.Now(),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetJob retrieves a job by identity key. Returns nil, nil if absent.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT id, kind, document_id, payload, status,
			   attempts, max_attempts, error, created_at, updated_at,
			   started_at, completed_at, scheduled_for
		FROM jobs
		WHERE id = $1
	`

	job, err := scanJob(q.db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	return job, nil
}

// PurgeJobs removes terminal jobs older than olderThanSeconds and trims
// the remaining terminal rows down to at most keep (oldest first).
func (q *Queue) PurgeJobs(ctx context.Context, olderThanSeconds, keep int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanSeconds) * time.Second)

	query := `
		DELETE FROM jobs
		WHERE status IN ($1, $2)
		  AND (
			updated_at < $3
			OR id IN (
				SELECT id FROM jobs
				WHERE status IN ($1, $2)
				ORDER BY updated_at DESC
				OFFSET $4
			)
		  )
	`

	result, err := q.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		cutoff,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return int(rows), nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	query := `
		SELECT status, COUNT(*) FROM jobs GROUP BY status
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		switch domain.JobStatus(status) {
		case domain.JobStatusPending:
			stats.PendingCount = count
		case domain.JobStatusProcessing:
			stats.ProcessingCount = count
		case domain.JobStatusCompleted:
			stats.CompletedCount = count
		case domain.JobStatusFailed:
			stats.FailedCount = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	return stats, nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op for the Postgres queue (db connection managed externally)
func (q *Queue) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var payload []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.DocumentID,
		&payload,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
		&job.ScheduledFor,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
