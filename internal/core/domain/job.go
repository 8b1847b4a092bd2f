package domain

import "time"

// JobKind identifies the type of background job.
type JobKind string

const (
	// JobKindIngest extracts and paginates an uploaded document
	JobKindIngest JobKind = "ingest"
	// JobKindConvert transcodes a PDF document into an EPUB
	JobKindConvert JobKind = "convert"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Retry policy shared by all job kinds.
const (
	// JobMaxAttempts is the retry ceiling before a job is permanently failed
	JobMaxAttempts = 3
	// JobBackoffBase is the first retry delay; it doubles on each attempt
	JobBackoffBase = 2 * time.Second
	// JobBackoffCap bounds the retry delay
	JobBackoffCap = 5 * time.Minute
)

// Job represents a queued unit of document work.
//
// The job ID doubles as the de-duplication identity: "<kind>-<documentId>".
// At most one job per (kind, document) can be outstanding at a time, which is
// the sole concurrency control preventing two ingestion attempts from racing
// on the same document. Enqueuing while one is outstanding must be a no-op.
type Job struct {
	// ID is the identity key "<kind>-<documentId>"
	ID string `json:"id"`

	// Kind identifies what kind of job this is
	Kind JobKind `json:"kind"`

	// DocumentID is the document this job targets
	DocumentID string `json:"document_id"`

	// Payload carries kind-specific data.
	// For ingest: {"storage_key": ..., "format": ...}
	// For convert: {"storage_key": ..., "title": ..., "author": ...}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the job
	Status JobStatus `json:"status"`

	// Attempts is how many times this job has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the retry ceiling before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the job should be processed (for backoff delays)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// JobID builds the identity key for a (kind, document) pair.
// The format is persisted; changing it would break de-duplication against
// jobs already in the queue.
func JobID(kind JobKind, documentID string) string {
	return string(kind) + "-" + documentID
}

// NewJob creates a job with default retry policy.
func NewJob(kind JobKind, documentID string, payload map[string]string) *Job {
	now := time.Now()
	return &Job{
		ID:           JobID(kind, documentID),
		Kind:         kind,
		DocumentID:   documentID,
		Payload:      payload,
		Status:       JobStatusPending,
		Attempts:     0,
		MaxAttempts:  JobMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIngestJob creates a job to ingest a document.
func NewIngestJob(doc *Document) *Job {
	return NewJob(JobKindIngest, doc.ID, map[string]string{
		"storage_key": doc.StorageKey,
		"format":      string(doc.Format),
	})
}

// NewConvertJob creates a job to transcode a document's PDF into an EPUB.
func NewConvertJob(doc *Document) *Job {
	return NewJob(JobKindConvert, doc.ID, map[string]string{
		"storage_key": doc.ConvertSourceKey(),
		"title":       doc.Title,
		"author":      doc.Author,
	})
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsTerminal returns true once the job has finished for good.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkProcessing updates the job to processing state.
func (j *Job) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted updates the job to completed state.
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed updates the job to failed state.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.UpdatedAt = now
	j.Error = err
}

// Retry resets the job for another attempt with exponential backoff:
// 2s, 4s, 8s, ... capped at JobBackoffCap.
func (j *Job) Retry(err string) {
	now := time.Now()
	j.Status = JobStatusPending
	j.UpdatedAt = now
	j.Error = err

	backoff := JobBackoffBase << (j.Attempts - 1)
	if backoff > JobBackoffCap || backoff <= 0 {
		backoff = JobBackoffCap
	}
	j.ScheduledFor = now.Add(backoff)
}

// StorageKey extracts the storage key from the payload.
func (j *Job) StorageKey() string {
	if j.Payload == nil {
		return ""
	}
	return j.Payload["storage_key"]
}
