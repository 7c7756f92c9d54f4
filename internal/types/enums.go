package types

// DeliveryOutcome classifies the result of one push delivery attempt.
type DeliveryOutcome string

const (
	// OutcomeSuccess means the push service accepted the message.
	OutcomeSuccess DeliveryOutcome = "success"

	// OutcomePermanent means the endpoint is provably dead (the push
	// service's equivalent of HTTP 404/410). Retrying is futile; the
	// subscription should be pruned.
	OutcomePermanent DeliveryOutcome = "permanent_failure"

	// OutcomeTransient means the attempt failed in a way worth retrying
	// (network error, 5xx, rate limit, open circuit breaker).
	OutcomeTransient DeliveryOutcome = "transient_failure"
)

// JobState is the lifecycle state of a delayed job inside the queue.
type JobState string

const (
	// JobStateScheduled means the job is waiting for its fire time.
	JobStateScheduled JobState = "scheduled"

	// JobStateFailed means the job exhausted its attempts and is parked
	// for operator inspection rather than silently dropped.
	JobStateFailed JobState = "failed"
)

// Notification state transitions reported to the telemetry port.
const (
	TransitionCreated = "created"
	TransitionPaused  = "paused"
	TransitionResumed = "resumed"
	TransitionReset   = "reset"
	TransitionSent    = "sent"
)
