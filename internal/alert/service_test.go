package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeAlertStore struct {
	mu           sync.Mutex
	alerts       map[primitive.ObjectID]*Alert
	markSentErrs []error
}

func newFakeAlertStore(alerts ...*Alert) *fakeAlertStore {
	s := &fakeAlertStore{alerts: make(map[primitive.ObjectID]*Alert)}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *fakeAlertStore) Create(ctx context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

func (s *fakeAlertStore) FindDue(ctx context.Context, now time.Time) ([]*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*Alert
	for _, a := range s.alerts {
		if a.Status == StatusPending && a.SentAt == nil && a.ScheduledAt != nil && !a.ScheduledAt.After(now) {
			copy := *a
			due = append(due, &copy)
		}
	}
	return due, nil
}

func (s *fakeAlertStore) Claim(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != StatusPending {
		return false, nil
	}
	a.Status = StatusClaimed
	return true, nil
}

func (s *fakeAlertStore) Release(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != StatusClaimed {
		return ErrAlertNotFound
	}
	a.Status = StatusPending
	return nil
}

func (s *fakeAlertStore) MarkSent(ctx context.Context, id primitive.ObjectID, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.markSentErrs) > 0 {
		err := s.markSentErrs[0]
		s.markSentErrs = s.markSentErrs[1:]
		return err
	}
	a, ok := s.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	a.Status = StatusSent
	a.SentAt = &sentAt
	return nil
}

func (s *fakeAlertStore) get(id primitive.ObjectID) Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

type fakeResolver struct {
	recipients []Recipient
	errFor     map[primitive.ObjectID]error
}

func (r *fakeResolver) Resolve(ctx context.Context, a *Alert) ([]Recipient, error) {
	if err := r.errFor[a.ID]; err != nil {
		return nil, err
	}
	return r.recipients, nil
}

type fakeFanout struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (f *fakeFanout) Deliver(ctx context.Context, a *Alert, recipients []Recipient) (*DeliveryReport, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &DeliveryReport{Recipients: len(recipients)}, nil
}

func (f *fakeFanout) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func dueAlert() *Alert {
	past := time.Now().Add(-time.Second)
	return &Alert{
		ID:              primitive.NewObjectID(),
		AudienceType:    AudienceAll,
		Subject:         "Early dismissal",
		MessageBody:     "School closes at noon",
		DeliveryMethods: DeliveryMethods{App: true, Email: true},
		ScheduledAt:     &past,
		Status:          StatusPending,
	}
}

func testService(store *fakeAlertStore, resolver *fakeResolver, deliverer *fakeFanout) *AlertService {
	return &AlertService{
		alerts:    store,
		personals: &fakePersonalStore{},
		resolver:  resolver,
		deliverer: deliverer,
		logger:    zap.NewNop(),
	}
}

func TestProcessDueMarksSentAfterFanout(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{recipients: testRecipients("p@x.com")}, fanout)

	svc.ProcessDue(context.Background())

	got := store.get(a.ID)
	assert.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 1, fanout.callCount())
}

func TestProcessDueExcludesSentAlerts(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{}, fanout)

	svc.ProcessDue(context.Background())
	svc.ProcessDue(context.Background())
	svc.ProcessDue(context.Background())

	assert.Equal(t, 1, fanout.callCount(), "a sent alert must never be re-processed")
}

func TestProcessDueReleasesOnResolveFailure(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	fanout := &fakeFanout{}
	resolver := &fakeResolver{errFor: map[primitive.ObjectID]error{a.ID: errors.New("store down")}}
	svc := testService(store, resolver, fanout)

	svc.ProcessDue(context.Background())

	got := store.get(a.ID)
	assert.Equal(t, StatusPending, got.Status, "failed alert must stay pending for the next tick")
	assert.Nil(t, got.SentAt)
	assert.Equal(t, 0, fanout.callCount())
}

func TestProcessDueReleasesOnFanoutFailure(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	fanout := &fakeFanout{err: errors.New("insert failed")}
	svc := testService(store, &fakeResolver{recipients: testRecipients("p@x.com")}, fanout)

	svc.ProcessDue(context.Background())

	got := store.get(a.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.SentAt)
}

func TestProcessDueRetriesMarkSentOnce(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	store.markSentErrs = []error{errors.New("write timeout")}
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{recipients: testRecipients("p@x.com")}, fanout)

	svc.ProcessDue(context.Background())

	got := store.get(a.ID)
	assert.Equal(t, StatusSent, got.Status, "a transient sent-write failure must be retried in place")
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 1, fanout.callCount())
}

func TestProcessDueReleasesOnMarkSentFailure(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	store.markSentErrs = []error{errors.New("write timeout"), errors.New("write timeout")}
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{recipients: testRecipients("p@x.com")}, fanout)

	svc.ProcessDue(context.Background())

	got := store.get(a.ID)
	assert.Equal(t, StatusPending, got.Status, "an alert must never be stranded in claimed")
	assert.Nil(t, got.SentAt)

	// Once the store recovers the next tick re-sends it, at-least-once.
	svc.ProcessDue(context.Background())
	assert.Equal(t, StatusSent, store.get(a.ID).Status)
	assert.Equal(t, 2, fanout.callCount())
}

func TestProcessDueContinuesPastFailingItem(t *testing.T) {
	bad := dueAlert()
	good := dueAlert()
	store := newFakeAlertStore(bad, good)
	fanout := &fakeFanout{}
	resolver := &fakeResolver{
		recipients: testRecipients("p@x.com"),
		errFor:     map[primitive.ObjectID]error{bad.ID: errors.New("store down")},
	}
	svc := testService(store, resolver, fanout)

	svc.ProcessDue(context.Background())

	assert.Equal(t, StatusPending, store.get(bad.ID).Status)
	assert.Equal(t, StatusSent, store.get(good.ID).Status)
}

func TestProcessDueClaimPreventsDoubleSend(t *testing.T) {
	a := dueAlert()
	store := newFakeAlertStore(a)
	fanout := &fakeFanout{delay: 50 * time.Millisecond}
	svc := testService(store, &fakeResolver{recipients: testRecipients("p@x.com")}, fanout)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ProcessDue(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fanout.callCount(), "overlapping scans must not fan out the same alert twice")
	assert.Equal(t, StatusSent, store.get(a.ID).Status)
}

func TestSendNowPersistsSentRecordAndDelivers(t *testing.T) {
	store := newFakeAlertStore()
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{recipients: testRecipients("a@x.com", "b@x.com")}, fanout)

	a := &Alert{
		SenderID:        primitive.NewObjectID(),
		AlertType:       TypeGeneral,
		AudienceType:    AudienceAll,
		Subject:         "Picture day",
		MessageBody:     "Tomorrow",
		DeliveryMethods: DeliveryMethods{App: true},
	}
	report, err := svc.SendNow(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Recipients)

	got := store.get(a.ID)
	assert.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, 1, fanout.callCount())
}

func TestScheduleStaysPendingUntilDue(t *testing.T) {
	store := newFakeAlertStore()
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{}, fanout)

	future := time.Now().Add(time.Hour)
	a := &Alert{
		AudienceType:    AudienceAll,
		Subject:         "Spirit week",
		MessageBody:     "Next month",
		DeliveryMethods: DeliveryMethods{Email: true},
		ScheduledAt:     &future,
	}
	require.NoError(t, svc.Schedule(context.Background(), a))

	got := store.get(a.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.SentAt)

	// Not due yet, so a scan must not touch it.
	svc.ProcessDue(context.Background())
	assert.Equal(t, 0, fanout.callCount())
	assert.Equal(t, StatusPending, store.get(a.ID).Status)
}
