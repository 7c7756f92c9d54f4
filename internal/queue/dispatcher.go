package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stepnotify/internal/types"
)

// claimScript atomically pops up to ARGV[2] due job ids from the scheduled
// set. Removing inside the script guarantees each attempt is delivered to
// exactly one dispatcher, even with multiple instances polling.
const claimScript = `
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
end
return due
`

// Handler executes one delivery job attempt. Returning an error triggers a
// retry with exponential backoff until the job's attempts are exhausted.
type Handler func(ctx context.Context, job types.DeliveryJob) error

// Dispatcher is the dequeue/execute half of the delayed queue. It polls
// for due jobs, hands each to the registered handler, reschedules failed
// attempts with exponential backoff, and parks exhausted jobs in the
// failed set.
type Dispatcher struct {
	client    RedisClient
	handler   Handler
	clock     types.Clock
	telemetry types.Telemetry
	logger    *slog.Logger

	pollInterval time.Duration
	claimBatch   int
	concurrency  int
}

// NewDispatcher creates a Dispatcher with the given worker configuration.
// A handler must be registered before Run is called.
func NewDispatcher(client RedisClient, cfg types.WorkerConfig, clock types.Clock, telemetry types.Telemetry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:       client,
		clock:        clock,
		telemetry:    telemetry,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		claimBatch:   cfg.ClaimBatch,
		concurrency:  cfg.Concurrency,
	}
}

// Register sets the handler invoked for each due job.
func (d *Dispatcher) Register(h Handler) {
	d.handler = h
}

// Run polls for due jobs until ctx is cancelled. Poll errors are logged
// and retried on the next tick; the loop only exits on cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	d.logger.InfoContext(ctx, "dispatcher started",
		"poll_interval", d.pollInterval,
		"concurrency", d.concurrency,
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.PollOnce(ctx); err != nil {
				d.logger.ErrorContext(ctx, "poll failed", "error", err)
			}
		}
	}
}

// PollOnce claims one batch of due jobs and executes them, up to the
// configured concurrency. Exposed separately so tests can drive the
// dispatcher without the ticker loop.
func (d *Dispatcher) PollOnce(ctx context.Context) error {
	now := d.clock.Now()
	ids, err := d.client.Eval(ctx, claimScript,
		[]string{scheduledKey},
		strconv.FormatFloat(float64(now.UnixMilli())/1000.0, 'f', 3, 64),
		d.claimBatch,
	).StringSlice()
	if err != nil {
		return types.NewAppError(types.ErrCodeScheduler, "failed to claim due jobs", err)
	}
	if len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			d.execute(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

// execute runs one attempt of a claimed job and settles its outcome:
// success removes the job, a failed attempt reschedules it with backoff,
// and an exhausted job is parked in the failed set.
func (d *Dispatcher) execute(ctx context.Context, jobID string) {
	jobKey := jobKeyPrefix + jobID

	fields, err := d.client.HGetAll(ctx, jobKey).Result()
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to load claimed job", "job_id", jobID, "error", err)
		return
	}
	if len(fields) == 0 {
		// Cancelled between claim and load; nothing to do.
		d.logger.DebugContext(ctx, "claimed job has no body, skipping", "job_id", jobID)
		return
	}

	var job types.DeliveryJob
	if err := json.Unmarshal([]byte(fields[fieldPayload]), &job); err != nil {
		// Corrupt payload is unrecoverable; park it rather than retry.
		d.logger.ErrorContext(ctx, "corrupt job payload, parking", "job_id", jobID, "error", err)
		d.park(ctx, jobID, "corrupt payload")
		return
	}

	if enqueued, err := time.Parse(time.RFC3339Nano, fields[fieldEnqueuedAt]); err == nil {
		d.telemetry.QueueLag(ctx, d.clock.Now().Sub(enqueued))
	}

	attempt64, err := d.client.HIncrBy(ctx, jobKey, fieldAttempts, 1).Result()
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record attempt", "job_id", jobID, "error", err)
		return
	}
	attempt := int(attempt64)
	maxAttempts, _ := strconv.Atoi(fields[fieldMaxAttempts])
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := d.logger.With(
		"job_id", jobID,
		"notification_id", job.NotificationID,
		"trace_id", job.TraceID,
		"attempt", attempt,
		"max_attempts", maxAttempts,
	)

	handlerErr := d.handler(ctx, job)
	if handlerErr == nil {
		if err := d.client.Del(ctx, jobKey).Err(); err != nil {
			logger.WarnContext(ctx, "failed to remove completed job", "error", err)
		}
		logger.InfoContext(ctx, "job completed")
		return
	}

	if err := d.client.HSet(ctx, jobKey, fieldLastError, handlerErr.Error()).Err(); err != nil {
		logger.WarnContext(ctx, "failed to record job error", "error", err)
	}

	if attempt >= maxAttempts {
		logger.ErrorContext(ctx, "job exhausted attempts, parking", "error", handlerErr)
		d.park(ctx, jobID, handlerErr.Error())
		return
	}

	delay := backoffDelay(fields[fieldBackoffMS], attempt)
	fireAt := d.clock.Now().Add(delay)
	if err := d.client.ZAdd(ctx, scheduledKey, redis.Z{
		Score:  float64(fireAt.UnixMilli()) / 1000.0,
		Member: jobID,
	}).Err(); err != nil {
		logger.ErrorContext(ctx, "failed to reschedule job, parking", "error", err)
		d.park(ctx, jobID, handlerErr.Error())
		return
	}
	logger.WarnContext(ctx, "job attempt failed, rescheduled",
		"error", handlerErr,
		"retry_in", delay,
	)
}

// park moves a job to the failed set, scored by failure time, where it is
// kept for operator inspection.
func (d *Dispatcher) park(ctx context.Context, jobID string, reason string) {
	if err := d.client.HSet(ctx, jobKeyPrefix+jobID, fieldLastError, reason).Err(); err != nil {
		d.logger.WarnContext(ctx, "failed to record park reason", "job_id", jobID, "error", err)
	}
	if err := d.client.ZAdd(ctx, failedKey, redis.Z{
		Score:  float64(d.clock.Now().UnixMilli()) / 1000.0,
		Member: jobID,
	}).Err(); err != nil {
		d.logger.ErrorContext(ctx, "failed to park job", "job_id", jobID, "error", err)
	}
}

// backoffDelay computes the exponential backoff before retry n+1: the base
// delay doubled for each prior failed attempt.
func backoffDelay(baseMSField string, attempt int) time.Duration {
	baseMS, _ := strconv.ParseInt(baseMSField, 10, 64)
	if baseMS <= 0 {
		baseMS = time.Second.Milliseconds()
	}
	delay := time.Duration(baseMS) * time.Millisecond
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
