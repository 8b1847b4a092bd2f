package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/folio-labs/folio-core/internal/core/domain"
	"github.com/folio-labs/folio-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

const (
	// Stream names
	jobStream     = "folio:jobs"
	jobGroup      = "folio:workers"
	scheduledJobs = "folio:scheduled"

	// Key prefixes
	jobKeyPrefix = "folio:job:"
	// Identity guard keys; present while a job identity is outstanding
	activeKeyPrefix = "folio:job:active:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a job is considered abandoned
	claimTimeout = 5 * time.Minute

	// Safety TTL on job records and identity guards
	jobTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue using Redis Streams.
// Redis Streams provide reliable message queuing with consumer groups,
// automatic acknowledgment tracking, and abandoned-message recovery.
//
// De-duplication uses a SETNX identity guard per job ID: the guard is
// claimed on enqueue and released only when the job reaches a terminal
// state, so repeat enqueues while a job is outstanding are no-ops.
type Queue struct {
	client       *redis.Client
	consumerName string

	now func() time.Time // injectable clock for tests
}

// NewQueue creates a new Redis-backed job queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		now:          time.Now,
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a job unless one with the same identity is outstanding.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	if job == nil {
		return false, errors.New("job is required")
	}

	// Claim the identity guard. If another job with this identity is
	// outstanding the claim fails and this enqueue is a no-op.
	claimed, err := q.client.SetNX(ctx, activeKeyPrefix+job.ID, "1", jobTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim job identity: %w", err)
	}
	if !claimed {
		return false, nil
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		// Release the guard so a corrected job can be enqueued later
		q.client.Del(ctx, activeKeyPrefix+job.ID)
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()

	pipe.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)

	if job.ScheduledFor.After(q.now()) {
		// Delayed: park in the sorted set until due
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: map[string]interface{}{
				"job_id":      job.ID,
				"kind":        string(job.Kind),
				"document_id": job.DocumentID,
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		q.client.Del(ctx, activeKeyPrefix+job.ID)
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return true, nil
}

// DequeueWithTimeout retrieves the next available job, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	// First, promote any due scheduled jobs
	if err := q.promoteScheduledJobs(ctx); err != nil {
		// Best effort; new stream reads still work
		_ = err
	}

	// Try to claim abandoned jobs first
	job, err := q.claimAbandonedJob(ctx)
	if err == nil && job != nil {
		return job, nil
	}

	blockDuration := time.Duration(timeout) * time.Second
	if timeout == 0 {
		blockDuration = 0 // Block forever
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs available
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	jobID, ok := msg.Values["job_id"].(string)
	if !ok {
		// Invalid message, acknowledge and skip
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		return nil, nil
	}

	job, err = q.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job data: %w", err)
	}

	if job == nil {
		// Job record missing, acknowledge and skip
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		return nil, nil
	}

	job.MarkProcessing()

	// Store updated job and message ID for ack/nack
	jobData, _ := json.Marshal(job)
	q.client.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)
	q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

	return job, nil
}

// Ack acknowledges successful completion of a job and releases its identity.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	msgID, err := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()

	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	job, err := q.GetJob(ctx, jobID)
	if err == nil && job != nil {
		job.MarkCompleted()
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	}

	// Terminal: release the identity guard so the document can be
	// re-ingested or re-converted later
	pipe.Del(ctx, activeKeyPrefix+jobID)
	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}

	return nil
}

// Nack indicates job processing failed. The job is rescheduled with
// backoff until its attempt ceiling, then marked failed.
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return errors.New("job not found")
	}

	msgID, _ := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()

	pipe := q.client.Pipeline()

	// Acknowledge the current message (we'll re-enqueue if retrying)
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	if job.CanRetry() {
		job.Retry(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)

		// Re-enqueue with delay (via scheduled set); identity guard
		// stays held until the retry resolves
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		job.MarkFailed(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
		pipe.Del(ctx, activeKeyPrefix+jobID)
	}

	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}

	return nil
}

// Fail marks a job permanently failed, bypassing the retry policy.
func (q *Queue) Fail(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return errors.New("job not found")
	}

	msgID, _ := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()

	pipe := q.client.Pipeline()

	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	job.MarkFailed(reason)
	jobData, _ := json.Marshal(job)
	pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	pipe.ZRem(ctx, scheduledJobs, jobID)
	pipe.Del(ctx, activeKeyPrefix+jobID)
	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by identity key.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// PurgeJobs removes terminal job records older than olderThanSeconds,
// and trims the remainder down to at most keep records (oldest first).
func (q *Queue) PurgeJobs(ctx context.Context, olderThanSeconds, keep int) (int, error) {
	cutoff := q.now().Add(-time.Duration(olderThanSeconds) * time.Second)

	type terminal struct {
		key       string
		updatedAt time.Time
	}
	var terminals []terminal
	var purged int

	var cursor uint64
	pattern := jobKeyPrefix + "*"

	for {
		keys, newCursor, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return purged, fmt.Errorf("failed to scan jobs: %w", err)
		}

		for _, key := range keys {
			// Skip message ID keys and identity guards
			if strings.HasSuffix(key, ":msg") || strings.HasPrefix(key, activeKeyPrefix) {
				continue
			}

			data, err := q.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}

			var job domain.Job
			if err := json.Unmarshal([]byte(data), &job); err != nil {
				continue
			}
			if !job.IsTerminal() {
				continue
			}

			if job.UpdatedAt.Before(cutoff) {
				q.client.Del(ctx, key)
				purged++
				continue
			}
			terminals = append(terminals, terminal{key: key, updatedAt: job.UpdatedAt})
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	// Trim down to the keep cap, oldest first
	if keep >= 0 && len(terminals) > keep {
		sort.Slice(terminals, func(i, j int) bool {
			return terminals[i].updatedAt.Before(terminals[j].updatedAt)
		})
		for _, t := range terminals[:len(terminals)-keep] {
			q.client.Del(ctx, t.key)
			purged++
		}
	}

	return purged, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	info, err := q.client.XInfoStream(ctx, jobStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Stream might not exist yet
		if !isStreamNotExistsError(err) {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
	} else if err == nil {
		stats.PendingCount = int64(info.Length)
	}

	scheduledCount, err := q.client.ZCard(ctx, scheduledJobs).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get scheduled count: %w", err)
	}
	stats.PendingCount += scheduledCount

	groups, err := q.client.XInfoGroups(ctx, jobStream).Result()
	if err == nil {
		for _, group := range groups {
			if group.Name == jobGroup {
				stats.ProcessingCount = int64(group.Pending)
				break
			}
		}
	}

	// Count terminal jobs (requires scan - expensive, admin use only)
	var cursor uint64
	pattern := jobKeyPrefix + "*"

	for {
		keys, newCursor, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			break
		}

		for _, key := range keys {
			if strings.HasSuffix(key, ":msg") || strings.HasPrefix(key, activeKeyPrefix) {
				continue
			}

			data, _ := q.client.Get(ctx, key).Result()
			var job domain.Job
			if json.Unmarshal([]byte(data), &job) == nil {
				switch job.Status {
				case domain.JobStatusCompleted:
					stats.CompletedCount++
				case domain.JobStatusFailed:
					stats.FailedCount++
				}
			}
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// promoteScheduledJobs moves due scheduled jobs to the main stream.
func (q *Queue) promoteScheduledJobs(ctx context.Context) error {
	now := q.now().Unix()

	due, err := q.client.ZRangeByScore(ctx, scheduledJobs, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()

	for _, jobID := range due {
		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil {
			pipe.ZRem(ctx, scheduledJobs, jobID)
			pipe.Del(ctx, activeKeyPrefix+jobID)
			continue
		}

		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: map[string]interface{}{
				"job_id":      job.ID,
				"kind":        string(job.Kind),
				"document_id": job.DocumentID,
			},
		})
		pipe.ZRem(ctx, scheduledJobs, jobID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedJob tries to claim a job that was abandoned by another worker.
func (q *Queue) claimAbandonedJob(ctx context.Context) (*domain.Job, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: jobStream,
		Group:  jobGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   jobStream,
			Group:    jobGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		jobID, ok := msg.Values["job_id"].(string)
		if !ok {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job.MarkProcessing()
		jobData, _ := json.Marshal(job)
		q.client.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)
		q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

		return job, nil
	}

	return nil, nil
}

// Helper functions

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (err.Error() == "ERR no such key" ||
		err.Error() == "ERR The XINFO subcommand requires the key to exist")
}
