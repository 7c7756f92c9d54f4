// Package notify contains the orchestration core of the pipeline: the
// Service that creates, pauses, resumes, and resets step notifications,
// and the Worker that delivers them when their delayed job fires.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stepnotify/internal/types"
)

// Service orchestrates the lifecycle of deferred step notifications. All
// operations are blocking round-trips to the store and the scheduler, and
// either complete or return an AppError; no failure that changes observable
// state is silently swallowed.
//
// Per-key invariant: at most one scheduled job exists per
// (userID, day, stepIndex) at a time. Create and Resume cancel any prior
// job before scheduling a new one.
type Service struct {
	store     types.NotificationStore
	subs      types.SubscriptionStore
	scheduler types.JobScheduler
	opts      types.ScheduleOptions
	clock     types.Clock
	telemetry types.Telemetry
	logger    *slog.Logger
}

// NewService creates the notification service.
func NewService(
	store types.NotificationStore,
	subs types.SubscriptionStore,
	scheduler types.JobScheduler,
	opts types.ScheduleOptions,
	clock types.Clock,
	telemetry types.Telemetry,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		subs:      subs,
		scheduler: scheduler,
		opts:      opts,
		clock:     clock,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Create persists a notification for the step and schedules its delayed
// job. The user must already hold a push subscription; without one the
// call fails with precondition_no_subscription (a hard failure, since
// sending is meaningless without an endpoint). A negative duration is
// clamped to zero, never rejected.
//
// If the scheduler enqueue fails after the record was persisted, the error
// is surfaced and the record is left disarmed (no job id). It simply never
// fires; no data is corrupted.
func (s *Service) Create(ctx context.Context, userID string, day, stepIndex int, duration time.Duration, url, stepTitle string) (string, error) {
	if duration < 0 {
		duration = 0
	}
	key := types.StepKey{UserID: userID, Day: day, StepIndex: stepIndex}

	snap, err := s.subs.FindForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if snap == nil {
		return "", types.NewAppError(types.ErrCodeNoSubscription,
			"user has no push subscription registered", nil)
	}

	// A fresh start for the key: cancel and remove any prior active
	// notification so only one job is ever armed per key.
	prior, err := s.store.FindActive(ctx, key)
	if err != nil {
		return "", err
	}
	if prior != nil {
		if prior.JobID != "" {
			if err := s.scheduler.Cancel(ctx, prior.JobID); err != nil {
				return "", err
			}
		}
		if err := s.store.Delete(ctx, prior.ID); err != nil {
			return "", err
		}
	}

	now := s.clock.Now()
	n := &types.StepNotification{
		UserID:       userID,
		Day:          day,
		StepIndex:    stepIndex,
		EndTS:        now.Add(duration).Unix(),
		URL:          url,
		StepTitle:    stepTitle,
		Subscription: *snap,
		CreatedAt:    now,
	}

	id, err := s.store.Create(ctx, n)
	if err != nil {
		return "", err
	}

	logger := s.logger.With("notification_id", id, "user_id", userID, "day", day, "step_index", stepIndex)

	jobID, err := s.arm(ctx, id, duration)
	if err != nil {
		logger.ErrorContext(ctx, "record persisted but scheduling failed, notification disarmed", "error", err)
		return "", err
	}

	logger.InfoContext(ctx, "notification created", "job_id", jobID, "end_ts", n.EndTS)
	s.telemetry.StateTransition(ctx, types.TransitionCreated)
	return id, nil
}

// Pause disarms the notification for the key. The scheduled job is
// cancelled, the job id cleared, and the remaining seconds until the
// deadline (floored at zero) are frozen into the record so a later resume
// can reconstruct the deadline. Pausing an absent or already-disarmed
// notification is a no-op.
func (s *Service) Pause(ctx context.Context, key types.StepKey) error {
	n, err := s.store.FindActive(ctx, key)
	if err != nil {
		return err
	}
	if n == nil || n.JobID == "" {
		return nil
	}

	if err := s.scheduler.Cancel(ctx, n.JobID); err != nil {
		return err
	}

	remaining := n.EndTS - s.clock.Now().Unix()
	if remaining < 0 {
		remaining = 0
	}
	err = s.store.Update(ctx, n.ID, types.NotificationPatch{
		EndTS: types.Int64Ptr(remaining),
		JobID: types.StringPtr(""),
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "notification paused",
		"notification_id", n.ID,
		"user_id", key.UserID,
		"remaining_sec", remaining,
	)
	s.telemetry.StateTransition(ctx, types.TransitionPaused)
	return nil
}

// Resume re-arms the notification for the key. The remaining duration is
// supplied by the caller: the client-held countdown is the source of truth
// for how much time is left. A negative remaining is clamped to zero
// (immediate fire). If a job is somehow still armed (double resume), it is
// cancelled first to preserve the single-job invariant. Resuming an absent
// key is a no-op.
func (s *Service) Resume(ctx context.Context, key types.StepKey, remaining time.Duration) error {
	if remaining < 0 {
		remaining = 0
	}

	n, err := s.store.FindActive(ctx, key)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}

	if n.JobID != "" {
		if err := s.scheduler.Cancel(ctx, n.JobID); err != nil {
			return err
		}
	}

	jobID, err := s.arm(ctx, n.ID, remaining)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "notification resumed",
		"notification_id", n.ID,
		"user_id", key.UserID,
		"job_id", jobID,
		"remaining", remaining,
	)
	s.telemetry.StateTransition(ctx, types.TransitionResumed)
	return nil
}

// Reset cancels any scheduled job for the key and deletes the record
// outright. Used when the user restarts a step from zero; the old deadline
// is meaningless. Resetting an absent key is a no-op.
func (s *Service) Reset(ctx context.Context, key types.StepKey) error {
	n, err := s.store.FindActive(ctx, key)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}

	if n.JobID != "" {
		if err := s.scheduler.Cancel(ctx, n.JobID); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, n.ID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "notification reset",
		"notification_id", n.ID,
		"user_id", key.UserID,
	)
	s.telemetry.StateTransition(ctx, types.TransitionReset)
	return nil
}

// arm schedules the delivery job for the notification and persists the new
// deadline and job id. If persisting fails the job is cancelled
// best-effort, so a reported failure never leaves a live job behind.
func (s *Service) arm(ctx context.Context, id string, delay time.Duration) (string, error) {
	now := s.clock.Now()
	job := types.DeliveryJob{
		NotificationID: id,
		TraceID:        uuid.New().String(),
		EnqueuedAt:     now,
	}

	jobID, err := s.scheduler.Schedule(ctx, job, delay, s.opts)
	if err != nil {
		return "", err
	}

	err = s.store.Update(ctx, id, types.NotificationPatch{
		EndTS: types.Int64Ptr(now.Add(delay).Unix()),
		JobID: types.StringPtr(jobID),
	})
	if err != nil {
		if cancelErr := s.scheduler.Cancel(ctx, jobID); cancelErr != nil {
			s.logger.WarnContext(ctx, "failed to cancel job after update failure",
				"notification_id", id,
				"job_id", jobID,
				"error", cancelErr,
			)
		}
		return "", err
	}
	return jobID, nil
}
