// Package worker runs the background job loop: a fixed pool of
// goroutines dequeuing document jobs and dispatching them to the
// ingestion and conversion services.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// IngestRunner runs the ingestion pipeline for one document.
type IngestRunner interface {
	Run(ctx context.Context, documentID string) error
}

// ConvertRunner runs the PDF-to-EPUB conversion for one document.
type ConvertRunner interface {
	Run(ctx context.Context, documentID string) error
}

// Worker processes jobs from the job queue.
type Worker struct {
	jobQueue  driven.JobQueue
	ingester  IngestRunner
	converter ConvertRunner
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds
	purgeInterval  time.Duration
	purgeAge       time.Duration
	purgeKeep      int

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config holds configuration for the worker.
type Config struct {
	JobQueue       driven.JobQueue
	Ingester       IngestRunner
	Converter      ConvertRunner
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent job processors
	DequeueTimeout int // Seconds to wait for a job before checking again

	// PurgeInterval controls how often terminal job records are pruned.
	// Zero disables the purge loop.
	PurgeInterval time.Duration
	// PurgeAge is the retention window for terminal job records.
	PurgeAge time.Duration
	// PurgeKeep caps how many terminal records survive a purge.
	PurgeKeep int
}

// New creates a job worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	purgeAge := cfg.PurgeAge
	if purgeAge <= 0 {
		purgeAge = 7 * 24 * time.Hour
	}

	purgeKeep := cfg.PurgeKeep
	if purgeKeep <= 0 {
		purgeKeep = 1000
	}

	return &Worker{
		jobQueue:       cfg.JobQueue,
		ingester:       cfg.Ingester,
		converter:      cfg.Converter,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		purgeInterval:  cfg.PurgeInterval,
		purgeAge:       purgeAge,
		purgeKeep:      purgeKeep,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	if w.purgeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.purgeLoop(ctx)
		}()
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		job, err := w.jobQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue job", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if job == nil {
			// No job available, continue
			continue
		}

		w.processJob(ctx, job, logger)
	}
}

// processJob processes a single job.
func (w *Worker) processJob(ctx context.Context, job *domain.Job, logger *slog.Logger) {
	logger = logger.With("job_id", job.ID, "job_kind", job.Kind, "document_id", job.DocumentID)
	logger.Info("processing job", "attempt", job.Attempts)

	startTime := time.Now()
	var err error

	switch job.Kind {
	case domain.JobKindIngest:
		err = w.ingester.Run(ctx, job.DocumentID)
	case domain.JobKindConvert:
		err = w.converter.Run(ctx, job.DocumentID)
	default:
		err = fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	duration := time.Since(startTime)

	if err != nil {
		logger.Error("job failed",
			"duration", duration,
			"error", err,
		)

		if isFatal(err) {
			// Retrying cannot help; fail permanently and release the identity
			if failErr := w.jobQueue.Fail(ctx, job.ID, err.Error()); failErr != nil {
				logger.Error("failed to fail job", "fail_error", failErr)
			}
			return
		}

		// Nack the job so it can be retried
		if nackErr := w.jobQueue.Nack(ctx, job.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack job", "nack_error", nackErr)
		}
		return
	}

	logger.Info("job completed", "duration", duration)

	if ackErr := w.jobQueue.Ack(ctx, job.ID); ackErr != nil {
		logger.Error("failed to ack job", "ack_error", ackErr)
	}
}

// isFatal reports whether an error can never succeed on retry.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrNotConvertible) ||
		errors.Is(err, domain.ErrInvalidInput)
}

// purgeLoop periodically prunes terminal job records.
func (w *Worker) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(w.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			purged, err := w.jobQueue.PurgeJobs(ctx, int(w.purgeAge.Seconds()), w.purgeKeep)
			if err != nil {
				w.logger.Error("job purge failed", "error", err)
				continue
			}
			if purged > 0 {
				w.logger.Info("purged job records", "count", purged)
			}
		}
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.jobQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
