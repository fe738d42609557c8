package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"KidDrop/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeliveryReport carries fan-out counts for observability; callers do not
// branch on it.
type DeliveryReport struct {
	Recipients      int `json:"recipients"`
	AppCreated      int `json:"appCreated"`
	EmailsAttempted int `json:"emailsAttempted"`
	EmailsFailed    int `json:"emailsFailed"`
}

type personalStore interface {
	CreateBatch(ctx context.Context, notes []*PersonalNotification) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*PersonalNotification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
}

// Deliverer fans one alert out to its resolved recipients on the channels the
// alert requests. Per-recipient email sends run concurrently up to a bounded
// limit under a per-send timeout; one recipient's failure never cancels the
// others.
type Deliverer struct {
	emails      config.EmailSender
	personals   personalStore
	logger      *zap.Logger
	concurrency int
	sendTimeout time.Duration
}

func NewDeliverer(emails config.EmailSender, personals *PersonalNotificationRepository, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		emails:      emails,
		personals:   personals,
		logger:      logger,
		concurrency: 8,
		sendTimeout: 30 * time.Second,
	}
}

// Deliver performs in-app persistence and/or email transmission. It returns
// an error only when the whole fan-out failed and the alert should stay
// pending for a retry; partial per-recipient failures only show up in the
// report.
func (d *Deliverer) Deliver(ctx context.Context, a *Alert, recipients []Recipient) (*DeliveryReport, error) {
	report := &DeliveryReport{Recipients: len(recipients)}

	if a.DeliveryMethods.SMS {
		d.logger.Warn("sms delivery requested but not implemented, skipping",
			zap.String("alert_id", a.ID.Hex()))
	}

	if a.DeliveryMethods.App {
		if err := d.deliverInApp(ctx, a, recipients, report); err != nil {
			return report, err
		}
	}

	if a.DeliveryMethods.Email {
		d.deliverEmails(ctx, a, recipients, report)
	}

	// The batch insert failed path returns above; email-only total failure is
	// still a completed fan-out (best-effort transport, not retried here).
	return report, nil
}

func (d *Deliverer) deliverInApp(ctx context.Context, a *Alert, recipients []Recipient, report *DeliveryReport) error {
	if len(recipients) == 0 {
		return nil
	}
	now := time.Now()
	notes := make([]*PersonalNotification, 0, len(recipients))
	for _, rec := range recipients {
		notes = append(notes, &PersonalNotification{
			UserID:      rec.UserID,
			SenderID:    a.SenderID,
			AlertID:     a.ID,
			AlertType:   a.AlertType,
			Subject:     a.Subject,
			MessageBody: a.MessageBody,
			Link:        a.Link,
			Read:        false,
			SentAt:      now,
			CreatedAt:   now,
		})
	}
	if err := d.personals.CreateBatch(ctx, notes); err != nil {
		return fmt.Errorf("failed to create in-app notifications: %w", err)
	}
	report.AppCreated = len(notes)
	return nil
}

func (d *Deliverer) deliverEmails(ctx context.Context, a *Alert, recipients []Recipient, report *DeliveryReport) {
	body := emailBody(a)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, rec := range recipients {
		if rec.Email == "" {
			continue
		}
		rec := rec
		// Incremented from the spawning goroutine only; the mutex guards the
		// failure count written by the workers.
		report.EmailsAttempted++

		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, d.sendTimeout)
			defer cancel()

			if err := d.emails.Send(sendCtx, rec.Email, a.Subject, body); err != nil {
				d.logger.Error("email delivery failed",
					zap.String("alert_id", a.ID.Hex()), zap.String("to", rec.Email), zap.Error(err))
				mu.Lock()
				report.EmailsFailed++
				mu.Unlock()
			}
			// Failures are counted, never returned: a returned error would
			// cancel the sibling sends through the group context.
			return nil
		})
	}
	g.Wait()
}

func emailBody(a *Alert) string {
	body := fmt.Sprintf("<p>%s</p>", a.MessageBody)
	if a.Link != "" {
		body += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, a.Link, a.Link)
	}
	return body
}
