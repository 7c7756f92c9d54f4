package types

import "time"

// DeliveryJob is the payload carried by a delayed job from the scheduler to
// the push delivery worker. It deliberately carries only the notification
// id: the worker re-loads the record at fire time so stale payloads cannot
// resurrect a cancelled or already-sent notification.
type DeliveryJob struct {
	NotificationID string    `json:"notification_id"`
	TraceID        string    `json:"trace_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}
