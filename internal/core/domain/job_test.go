package domain

import (
	"testing"
	"time"
)

func TestJobID_Format(t *testing.T) {
	id := JobID(JobKindIngest, "doc-123")
	if id != "ingest-doc-123" {
		t.Errorf("expected ingest-doc-123, got %s", id)
	}

	id = JobID(JobKindConvert, "doc-123")
	if id != "convert-doc-123" {
		t.Errorf("expected convert-doc-123, got %s", id)
	}
}

func TestNewJob_Defaults(t *testing.T) {
	job := NewJob(JobKindIngest, "doc-1", map[string]string{"storage_key": "u/doc-1.pdf"})

	if job.ID != "ingest-doc-1" {
		t.Errorf("expected identity key as ID, got %s", job.ID)
	}
	if job.Status != JobStatusPending {
		t.Errorf("expected pending status, got %s", job.Status)
	}
	if job.Attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", job.Attempts)
	}
	if job.MaxAttempts != JobMaxAttempts {
		t.Errorf("expected max attempts %d, got %d", JobMaxAttempts, job.MaxAttempts)
	}
	if job.StorageKey() != "u/doc-1.pdf" {
		t.Errorf("expected storage key from payload, got %s", job.StorageKey())
	}
}

func TestNewConvertJob_Payload(t *testing.T) {
	doc := NewDocument("doc-9", "user-1", "My Book", "Someone", FormatPDF, "u/doc-9.pdf")
	job := NewConvertJob(doc)

	if job.ID != "convert-doc-9" {
		t.Errorf("expected convert-doc-9, got %s", job.ID)
	}
	if job.Payload["title"] != "My Book" {
		t.Errorf("expected title in payload, got %s", job.Payload["title"])
	}
	if job.Payload["author"] != "Someone" {
		t.Errorf("expected author in payload, got %s", job.Payload["author"])
	}
	if job.Payload["storage_key"] != "u/doc-9.pdf" {
		t.Errorf("expected pdf key in payload, got %s", job.Payload["storage_key"])
	}
}

func TestJob_CanRetry(t *testing.T) {
	job := NewJob(JobKindIngest, "doc-1", nil)

	for i := 0; i < JobMaxAttempts; i++ {
		if !job.CanRetry() {
			t.Fatalf("expected CanRetry at attempt %d", job.Attempts)
		}
		job.MarkProcessing()
	}

	if job.CanRetry() {
		t.Errorf("expected retry ceiling after %d attempts", job.Attempts)
	}
}

func TestJob_Retry_Backoff(t *testing.T) {
	job := NewJob(JobKindConvert, "doc-1", nil)

	// First attempt fails: backoff should be the base delay.
	job.MarkProcessing()
	before := time.Now()
	job.Retry("transient storage error")

	if job.Status != JobStatusPending {
		t.Errorf("expected pending after retry, got %s", job.Status)
	}
	if job.Error != "transient storage error" {
		t.Errorf("expected error preserved, got %q", job.Error)
	}
	delay := job.ScheduledFor.Sub(before)
	if delay < JobBackoffBase-time.Second || delay > JobBackoffBase+time.Second {
		t.Errorf("expected ~%v backoff, got %v", JobBackoffBase, delay)
	}

	// Second attempt fails: backoff doubles.
	job.MarkProcessing()
	before = time.Now()
	job.Retry("still failing")
	delay = job.ScheduledFor.Sub(before)
	if delay < 2*JobBackoffBase-time.Second || delay > 2*JobBackoffBase+time.Second {
		t.Errorf("expected ~%v backoff, got %v", 2*JobBackoffBase, delay)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob(JobKindIngest, "doc-1", nil)

	job.MarkProcessing()
	if job.Status != JobStatusProcessing {
		t.Errorf("expected processing, got %s", job.Status)
	}
	if job.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}
	if job.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", job.Attempts)
	}

	job.MarkCompleted()
	if job.Status != JobStatusCompleted {
		t.Errorf("expected completed, got %s", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if !job.IsTerminal() {
		t.Error("expected terminal state")
	}

	job.MarkFailed("gave up")
	if job.Status != JobStatusFailed {
		t.Errorf("expected failed, got %s", job.Status)
	}
	if job.Error != "gave up" {
		t.Errorf("expected error recorded, got %q", job.Error)
	}
}
