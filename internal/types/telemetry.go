package types

// Prometheus metric names and label keys. All components use these
// constants.
const (
	MetricTransitions     = "stepnotify_notification_transitions_total"
	MetricDeliveryAttempt = "stepnotify_delivery_attempts_total"
	MetricDeliverySeconds = "stepnotify_delivery_seconds"
	MetricQueueLagSeconds = "stepnotify_queue_lag_seconds"

	LabelTransition = "transition"
	LabelOutcome    = "outcome"
)
