// Package types defines the domain model, error taxonomy, and boundary
// interfaces shared by all components of the step-notification pipeline.
package types

import "time"

// StepKey identifies one training step instance for one user. Day is the
// legacy ordinal day number kept for compatibility with the notification
// subsystem; translation from id-based day entities happens at the boundary,
// outside this core.
type StepKey struct {
	UserID    string
	Day       int
	StepIndex int
}

// StepNotification is one pending (or in-flight) deferred notification for
// a single timed training step.
//
// EndTS is the absolute Unix timestamp (seconds) at which the notification
// should fire while the record is armed. While the record is paused the
// field instead holds the frozen remaining seconds, so a later resume can
// reconstruct the deadline. It is recomputed on every resume.
//
// JobID is the id of the currently scheduled delayed job. An empty JobID
// means the record is disarmed (paused, or the scheduler enqueue failed
// after the record was persisted).
type StepNotification struct {
	ID        string
	UserID    string
	Day       int
	StepIndex int
	EndTS     int64
	URL       string
	StepTitle string

	// Subscription is a denormalized snapshot of the user's push endpoint
	// taken at creation time. Delivery must succeed even if the live
	// subscription is rotated or deleted between schedule time and fire
	// time, so the snapshot is a copy, not a reference.
	Subscription SubscriptionSnapshot

	JobID     string
	Sent      bool
	CreatedAt time.Time
}

// Key returns the composite lookup key for this notification.
func (n *StepNotification) Key() StepKey {
	return StepKey{UserID: n.UserID, Day: n.Day, StepIndex: n.StepIndex}
}

// Armed reports whether the notification currently has a live scheduled job.
func (n *StepNotification) Armed() bool {
	return n.JobID != "" && !n.Sent
}

// SubscriptionSnapshot carries the push endpoint address and the two
// cryptographic keys required by the Web Push protocol.
type SubscriptionSnapshot struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

// PushSubscription is a user's registered push endpoint. A user may hold
// several active subscriptions, one per device. Rows are removed when the
// transport reports the endpoint permanently gone or the user revokes.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

// Snapshot returns the denormalized copy stored on notifications.
func (s *PushSubscription) Snapshot() SubscriptionSnapshot {
	return SubscriptionSnapshot{Endpoint: s.Endpoint, P256dh: s.P256dh, Auth: s.Auth}
}

// PushPayload is the message body handed to the push transport.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// NotificationPatch is a partial update applied to a StepNotification.
// Nil fields are left unchanged.
type NotificationPatch struct {
	EndTS *int64
	JobID *string
	Sent  *bool
}

// Int64Ptr returns a pointer to v, for building patches inline.
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr returns a pointer to v, for building patches inline.
func StringPtr(v string) *string { return &v }

// BoolPtr returns a pointer to v, for building patches inline.
func BoolPtr(v bool) *bool { return &v }
