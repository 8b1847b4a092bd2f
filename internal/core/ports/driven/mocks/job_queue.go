package mocks

import (
	"context"
	"sync"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// MockJobQueue is an in-memory JobQueue honoring the idempotent-enqueue
// contract, for testing services and the worker.
type MockJobQueue struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	pending []string
}

// NewMockJobQueue creates a new MockJobQueue.
func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{
		jobs: make(map[string]*domain.Job),
	}
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.jobs[job.ID]; ok && !existing.IsTerminal() {
		return false, nil
	}
	cp := *job
	m.jobs[job.ID] = &cp
	m.pending = append(m.pending, job.ID)
	return true, nil
}

func (m *MockJobQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, nil
	}
	id := m.pending[0]
	m.pending = m.pending[1:]
	job := m.jobs[id]
	job.MarkProcessing()
	cp := *job
	return &cp, nil
}

func (m *MockJobQueue) Ack(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.MarkCompleted()
	}
	return nil
}

func (m *MockJobQueue) Nack(ctx context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.CanRetry() {
		job.Retry(reason)
		m.pending = append(m.pending, jobID)
	} else {
		job.MarkFailed(reason)
	}
	return nil
}

func (m *MockJobQueue) Fail(ctx context.Context, jobID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.MarkFailed(reason)
	return nil
}

func (m *MockJobQueue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobQueue) PurgeJobs(ctx context.Context, olderThanSeconds, keep int) (int, error) {
	return 0, nil
}

func (m *MockJobQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{PendingCount: int64(len(m.pending))}
	for _, job := range m.jobs {
		switch job.Status {
		case domain.JobStatusProcessing:
			stats.ProcessingCount++
		case domain.JobStatusCompleted:
			stats.CompletedCount++
		case domain.JobStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockJobQueue) Ping(ctx context.Context) error { return nil }

func (m *MockJobQueue) Close() error { return nil }
