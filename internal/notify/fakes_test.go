package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stepnotify/internal/types"
)

// fakeClock implements types.Clock with a controllable current time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore implements types.NotificationStore in memory and records
// update patches for assertions.
type fakeStore struct {
	records map[string]*types.StepNotification
	nextID  int

	patches []types.NotificationPatch

	getErr    error
	findErr   error
	createErr error
	updateErr error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*types.StepNotification)}
}

func (s *fakeStore) Get(_ context.Context, id string) (*types.StepNotification, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	n, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *fakeStore) FindActive(_ context.Context, key types.StepKey) (*types.StepNotification, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, n := range s.records {
		if n.Key() == key && !n.Sent {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Create(_ context.Context, n *types.StepNotification) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	if n.ID == "" {
		s.nextID++
		n.ID = fmt.Sprintf("notif-%d", s.nextID)
	}
	cp := *n
	s.records[n.ID] = &cp
	return n.ID, nil
}

func (s *fakeStore) Update(_ context.Context, id string, patch types.NotificationPatch) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	n, ok := s.records[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "step notification not found", nil)
	}
	s.patches = append(s.patches, patch)
	if patch.EndTS != nil {
		n.EndTS = *patch.EndTS
	}
	if patch.JobID != nil {
		n.JobID = *patch.JobID
	}
	if patch.Sent != nil {
		n.Sent = *patch.Sent
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, id)
	return nil
}

// fakeSubs implements types.SubscriptionStore.
type fakeSubs struct {
	byUser  map[string]types.SubscriptionSnapshot
	deleted []string

	findErr   error
	deleteErr error
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{byUser: make(map[string]types.SubscriptionSnapshot)}
}

func (s *fakeSubs) FindForUser(_ context.Context, userID string) (*types.SubscriptionSnapshot, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	snap, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *fakeSubs) Save(_ context.Context, sub *types.PushSubscription) error {
	s.byUser[sub.UserID] = sub.Snapshot()
	return nil
}

func (s *fakeSubs) DeleteByEndpoint(_ context.Context, endpoint string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, endpoint)
	for userID, snap := range s.byUser {
		if snap.Endpoint == endpoint {
			delete(s.byUser, userID)
		}
	}
	return nil
}

// scheduleCall records one Schedule invocation.
type scheduleCall struct {
	job   types.DeliveryJob
	delay time.Duration
	opts  types.ScheduleOptions
}

// fakeScheduler implements types.JobScheduler and records calls.
type fakeScheduler struct {
	nextID    int
	schedules []scheduleCall
	cancels   []string

	scheduleErr error
	cancelErr   error
}

func (s *fakeScheduler) Schedule(_ context.Context, job types.DeliveryJob, delay time.Duration, opts types.ScheduleOptions) (string, error) {
	if s.scheduleErr != nil {
		return "", s.scheduleErr
	}
	s.nextID++
	s.schedules = append(s.schedules, scheduleCall{job: job, delay: delay, opts: opts})
	return fmt.Sprintf("job-%d", s.nextID), nil
}

func (s *fakeScheduler) Cancel(_ context.Context, jobID string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancels = append(s.cancels, jobID)
	return nil
}

// fakeTransport implements types.PushTransport with scripted results.
type fakeTransport struct {
	result  *types.DeliveryResult
	err     error
	sent    []types.PushPayload
	targets []types.SubscriptionSnapshot
}

func (t *fakeTransport) Send(_ context.Context, sub types.SubscriptionSnapshot, payload types.PushPayload) (*types.DeliveryResult, error) {
	if t.err != nil {
		return nil, t.err
	}
	t.sent = append(t.sent, payload)
	t.targets = append(t.targets, sub)
	if t.result != nil {
		return t.result, nil
	}
	return &types.DeliveryResult{Outcome: types.OutcomeSuccess, StatusCode: 201}, nil
}

// validSnapshot returns a well-formed subscription snapshot for tests.
func validSnapshot() types.SubscriptionSnapshot {
	return types.SubscriptionSnapshot{
		Endpoint: "https://push.example.com/send/abc123",
		P256dh:   "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
		Auth:     "tBHItJI5svbpez7KI4CCXg",
	}
}
