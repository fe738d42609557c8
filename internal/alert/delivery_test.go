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

type fakeEmailSender struct {
	mu     sync.Mutex
	sent   []string
	failTo map[string]bool
}

func (f *fakeEmailSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return errors.New("smtp unreachable")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakePersonalStore struct {
	mu      sync.Mutex
	created []*PersonalNotification
	err     error
}

func (f *fakePersonalStore) CreateBatch(ctx context.Context, notes []*PersonalNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, notes...)
	return nil
}

func (f *fakePersonalStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*PersonalNotification, error) {
	return nil, nil
}

func (f *fakePersonalStore) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	return nil
}

func testDeliverer(emails *fakeEmailSender, personals *fakePersonalStore) *Deliverer {
	return &Deliverer{
		emails:      emails,
		personals:   personals,
		logger:      zap.NewNop(),
		concurrency: 4,
		sendTimeout: time.Second,
	}
}

func testRecipients(emails ...string) []Recipient {
	recipients := make([]Recipient, 0, len(emails))
	for _, e := range emails {
		recipients = append(recipients, Recipient{UserID: primitive.NewObjectID(), Email: e})
	}
	return recipients
}

func TestDeliverAppCreatesOneRecordPerRecipient(t *testing.T) {
	personals := &fakePersonalStore{}
	d := testDeliverer(&fakeEmailSender{}, personals)
	a := &Alert{ID: primitive.NewObjectID(), Subject: "s", MessageBody: "m", DeliveryMethods: DeliveryMethods{App: true}}

	report, err := d.Deliver(context.Background(), a, testRecipients("a@x.com", "b@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.AppCreated)
	require.Len(t, personals.created, 2)
	for _, n := range personals.created {
		assert.False(t, n.Read)
		assert.Equal(t, a.ID, n.AlertID)
	}
	assert.Equal(t, 0, report.EmailsAttempted)
}

func TestDeliverEmailSkipsEmptyAddresses(t *testing.T) {
	emails := &fakeEmailSender{}
	personals := &fakePersonalStore{}
	d := testDeliverer(emails, personals)
	a := &Alert{ID: primitive.NewObjectID(), DeliveryMethods: DeliveryMethods{App: true, Email: true}}

	// Three recipients, one without an email address.
	recipients := testRecipients("a@x.com", "", "b@x.com")
	report, err := d.Deliver(context.Background(), a, recipients)
	require.NoError(t, err)
	assert.Equal(t, 3, report.AppCreated)
	assert.Equal(t, 2, report.EmailsAttempted)
	assert.Equal(t, 0, report.EmailsFailed)
	assert.Len(t, emails.sent, 2)
}

func TestDeliverEmailFailureDoesNotBlockOthers(t *testing.T) {
	emails := &fakeEmailSender{failTo: map[string]bool{"a@x.com": true}}
	d := testDeliverer(emails, &fakePersonalStore{})
	a := &Alert{ID: primitive.NewObjectID(), DeliveryMethods: DeliveryMethods{Email: true}}

	report, err := d.Deliver(context.Background(), a, testRecipients("a@x.com", "b@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.EmailsAttempted)
	assert.Equal(t, 1, report.EmailsFailed)
	assert.Equal(t, []string{"b@x.com"}, emails.sent)
}

func TestDeliverSMSIsNoOp(t *testing.T) {
	emails := &fakeEmailSender{}
	personals := &fakePersonalStore{}
	d := testDeliverer(emails, personals)
	a := &Alert{ID: primitive.NewObjectID(), DeliveryMethods: DeliveryMethods{SMS: true}}

	report, err := d.Deliver(context.Background(), a, testRecipients("a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 0, report.AppCreated)
	assert.Equal(t, 0, report.EmailsAttempted)
	assert.Empty(t, emails.sent)
}

func TestDeliverBatchInsertFailureIsReturned(t *testing.T) {
	personals := &fakePersonalStore{err: errors.New("write failed")}
	d := testDeliverer(&fakeEmailSender{}, personals)
	a := &Alert{ID: primitive.NewObjectID(), DeliveryMethods: DeliveryMethods{App: true}}

	_, err := d.Deliver(context.Background(), a, testRecipients("a@x.com"))
	require.Error(t, err)
}

func TestEmailBodyIncludesLink(t *testing.T) {
	withLink := emailBody(&Alert{MessageBody: "hello", Link: "https://school.example/news"})
	assert.Contains(t, withLink, "<p>hello</p>")
	assert.Contains(t, withLink, `<a href="https://school.example/news">`)

	withoutLink := emailBody(&Alert{MessageBody: "hello"})
	assert.Equal(t, "<p>hello</p>", withoutLink)
}
