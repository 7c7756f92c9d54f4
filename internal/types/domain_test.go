package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepNotificationArmed(t *testing.T) {
	n := &StepNotification{JobID: "job-1"}
	assert.True(t, n.Armed())

	n.JobID = ""
	assert.False(t, n.Armed(), "paused record is disarmed")

	n.JobID = "job-1"
	n.Sent = true
	assert.False(t, n.Armed(), "sent record is never armed")
}

func TestStepNotificationKey(t *testing.T) {
	n := &StepNotification{UserID: "u1", Day: 3, StepIndex: 2}
	assert.Equal(t, StepKey{UserID: "u1", Day: 3, StepIndex: 2}, n.Key())
}

func TestPushSubscriptionSnapshot(t *testing.T) {
	sub := &PushSubscription{
		UserID:   "u1",
		Endpoint: "https://push.example.com/send/abc",
		P256dh:   "p",
		Auth:     "a",
	}
	snap := sub.Snapshot()
	assert.Equal(t, sub.Endpoint, snap.Endpoint)
	assert.Equal(t, sub.P256dh, snap.P256dh)
	assert.Equal(t, sub.Auth, snap.Auth)
}

func TestSubscriptionSnapshotValidate(t *testing.T) {
	valid := SubscriptionSnapshot{
		Endpoint: "https://push.example.com/send/abc",
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mod  func(*SubscriptionSnapshot)
	}{
		{"missing endpoint", func(s *SubscriptionSnapshot) { s.Endpoint = "" }},
		{"endpoint not a url", func(s *SubscriptionSnapshot) { s.Endpoint = "not a url" }},
		{"missing p256dh", func(s *SubscriptionSnapshot) { s.P256dh = "" }},
		{"missing auth", func(s *SubscriptionSnapshot) { s.Auth = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := valid
			tt.mod(&snap)
			err := snap.Validate()
			assert.Error(t, err)
			assert.Equal(t, ErrCodeValidationMalformedSub, ErrorCodeOf(err))
		})
	}
}
