// Package queue implements the durable delayed job scheduler on Redis.
//
// Layout: a sorted set of job ids scored by fire time (unix seconds, float)
// plus one hash per job carrying the serialized payload and retry state.
// Jobs survive process restarts because both structures live in Redis, not
// in memory. Any number of dispatcher instances may poll the same queue;
// the claim step is a Lua script, so each due job is handed to exactly one
// dispatcher per attempt.
//
// Jobs that exhaust their attempts are moved to a failed sorted set (scored
// by failure time) and kept for operator inspection rather than dropped.
package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stepnotify/internal/types"
)

// Redis key layout.
const (
	scheduledKey = "stepnotify:jobs:scheduled"
	failedKey    = "stepnotify:jobs:failed"
	jobKeyPrefix = "stepnotify:job:"
)

// Job hash fields.
const (
	fieldPayload     = "payload"
	fieldAttempts    = "attempts"
	fieldMaxAttempts = "max_attempts"
	fieldBackoffMS   = "backoff_ms"
	fieldEnqueuedAt  = "enqueued_at"
	fieldLastError   = "last_error"
)

// RedisClient abstracts the Redis commands the scheduler uses. Production
// code passes *redis.Client; tests supply an in-memory fake.
type RedisClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Compile-time assertion that the go-redis client satisfies RedisClient.
var _ RedisClient = (*redis.Client)(nil)

// Compile-time assertion that Scheduler implements the JobScheduler port.
var _ types.JobScheduler = (*Scheduler)(nil)

// Scheduler is the schedule/cancel half of the delayed queue. It is safe
// for concurrent use.
type Scheduler struct {
	client RedisClient
	clock  types.Clock
	logger *slog.Logger
}

// NewScheduler creates a Scheduler on the given Redis client.
func NewScheduler(client RedisClient, clock types.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{client: client, clock: clock, logger: logger}
}

// Schedule enqueues a delivery job to fire after delay and returns the job
// id. A negative delay is treated as zero (immediate fire on the next
// poll). The job hash is written before the sorted-set entry so a claimed
// id always resolves to a payload.
func (s *Scheduler) Schedule(ctx context.Context, job types.DeliveryJob, delay time.Duration, opts types.ScheduleOptions) (string, error) {
	if delay < 0 {
		delay = 0
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = s.clock.Now()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeScheduler, "failed to marshal delivery job", err)
	}

	jobID := uuid.New().String()
	fireAt := s.clock.Now().Add(delay)

	if err := s.client.HSet(ctx, jobKeyPrefix+jobID,
		fieldPayload, string(body),
		fieldAttempts, 0,
		fieldMaxAttempts, opts.MaxAttempts,
		fieldBackoffMS, opts.BackoffBase.Milliseconds(),
		fieldEnqueuedAt, job.EnqueuedAt.Format(time.RFC3339Nano),
	).Err(); err != nil {
		return "", types.NewAppError(types.ErrCodeScheduler, "failed to store job", err)
	}

	if err := s.client.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(fireAt.UnixMilli()) / 1000.0,
		Member: jobID,
	}).Err(); err != nil {
		return "", types.NewAppError(types.ErrCodeScheduler, "failed to schedule job", err)
	}

	s.logger.InfoContext(ctx, "job scheduled",
		"job_id", jobID,
		"notification_id", job.NotificationID,
		"trace_id", job.TraceID,
		"fire_at", fireAt,
		"delay", delay,
	)
	return jobID, nil
}

// Cancel removes a scheduled job, best-effort. If the job is no longer in
// the scheduled set (already claimed, completed, or never existed) this is
// a silent no-op; the worker's idempotent record check covers the race
// with an in-flight execution.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	removed, err := s.client.ZRem(ctx, scheduledKey, jobID).Result()
	if err != nil {
		return types.NewAppError(types.ErrCodeScheduler, "failed to cancel job", err)
	}
	if removed == 0 {
		return nil
	}
	if err := s.client.Del(ctx, jobKeyPrefix+jobID).Err(); err != nil {
		return types.NewAppError(types.ErrCodeScheduler, "failed to remove cancelled job", err)
	}
	s.logger.InfoContext(ctx, "job cancelled", "job_id", jobID)
	return nil
}

// FailedJob describes a parked job, for operator inspection.
type FailedJob struct {
	JobID     string
	Job       types.DeliveryJob
	Attempts  int
	LastError string
}

// Failed lists up to limit parked jobs, oldest first.
func (s *Scheduler) Failed(ctx context.Context, limit int64) ([]FailedJob, error) {
	ids, err := s.client.ZRange(ctx, failedKey, 0, limit-1).Result()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeScheduler, "failed to list failed jobs", err)
	}

	jobs := make([]FailedJob, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, jobKeyPrefix+id).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		fj := FailedJob{JobID: id, LastError: fields[fieldLastError]}
		fj.Attempts, _ = strconv.Atoi(fields[fieldAttempts])
		if err := json.Unmarshal([]byte(fields[fieldPayload]), &fj.Job); err != nil {
			continue
		}
		jobs = append(jobs, fj)
	}
	return jobs, nil
}
