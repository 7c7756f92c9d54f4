package types

import (
	"context"
	"time"
)

// NotificationStore is the persistence adapter for StepNotification records.
// Implemented by internal/db on PostgreSQL; the service and worker depend
// only on this interface.
//
// Lookup methods return (nil, nil) when no matching record exists. Absence
// is an expected condition (idempotent no-ops in the service and worker),
// not an error.
type NotificationStore interface {
	// Get loads a notification by id.
	Get(ctx context.Context, id string) (*StepNotification, error)

	// FindActive returns the non-sent notification for the key, if any.
	FindActive(ctx context.Context, key StepKey) (*StepNotification, error)

	// Create inserts a new record and returns its id.
	Create(ctx context.Context, n *StepNotification) (string, error)

	// Update applies a partial update to the record with the given id.
	Update(ctx context.Context, id string, patch NotificationPatch) error

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore is the persistence adapter for push subscriptions.
type SubscriptionStore interface {
	// FindForUser returns the user's most recently registered subscription
	// as a snapshot, or (nil, nil) when the user has none.
	FindForUser(ctx context.Context, userID string) (*SubscriptionSnapshot, error)

	// Save registers a subscription, replacing any prior row with the same
	// endpoint.
	Save(ctx context.Context, sub *PushSubscription) error

	// DeleteByEndpoint prunes a subscription by its endpoint address. Used
	// when the transport reports the endpoint permanently gone, and when a
	// user revokes. Deleting an absent endpoint is a no-op.
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// DeliveryResult describes the outcome of one transport send.
type DeliveryResult struct {
	Outcome    DeliveryOutcome
	StatusCode int
	Reason     string
}

// PushTransport abstracts the Web Push delivery capability. The returned
// error indicates the attempt could not be made at all (treated as
// transient by the worker); delivery failures reported by the push service
// are classified in the DeliveryResult instead.
type PushTransport interface {
	Send(ctx context.Context, sub SubscriptionSnapshot, payload PushPayload) (*DeliveryResult, error)
}

// ScheduleOptions controls retry behavior for a delayed job.
type ScheduleOptions struct {
	// MaxAttempts is how many times the handler is invoked before the job
	// is parked as failed.
	MaxAttempts int

	// BackoffBase is the delay before the first retry; subsequent retries
	// double it.
	BackoffBase time.Duration
}

// JobScheduler is the durable delayed queue the service schedules against.
// Jobs survive process restarts; dequeue-and-execute is at-least-once, made
// safe by the worker's idempotent record check.
type JobScheduler interface {
	// Schedule enqueues a delivery job to fire after delay and returns an
	// id usable for cancellation.
	Schedule(ctx context.Context, job DeliveryJob, delay time.Duration, opts ScheduleOptions) (string, error)

	// Cancel removes a scheduled job, best-effort. Cancelling a job that
	// has already started executing or no longer exists is a silent no-op;
	// the worker's idempotency check covers that race.
	Cancel(ctx context.Context, jobID string) error
}

// Telemetry is the observability port called on state transitions and
// delivery outcomes. Implementations must be best-effort: they never block
// and never fail the primary operation.
type Telemetry interface {
	StateTransition(ctx context.Context, transition string)
	DeliveryAttempt(ctx context.Context, outcome DeliveryOutcome)
	DeliveryLatency(ctx context.Context, d time.Duration)
	QueueLag(ctx context.Context, lag time.Duration)
}

// NoopTelemetry discards all observations. Used where no metrics backend
// is wired.
type NoopTelemetry struct{}

func (NoopTelemetry) StateTransition(context.Context, string)          {}
func (NoopTelemetry) DeliveryAttempt(context.Context, DeliveryOutcome) {}
func (NoopTelemetry) DeliveryLatency(context.Context, time.Duration)   {}
func (NoopTelemetry) QueueLag(context.Context, time.Duration)          {}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
