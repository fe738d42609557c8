package alert

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type alertStore interface {
	Create(ctx context.Context, a *Alert) error
	FindDue(ctx context.Context, now time.Time) ([]*Alert, error)
	Claim(ctx context.Context, id primitive.ObjectID) (bool, error)
	Release(ctx context.Context, id primitive.ObjectID) error
	MarkSent(ctx context.Context, id primitive.ObjectID, sentAt time.Time) error
}

type audienceResolver interface {
	Resolve(ctx context.Context, a *Alert) ([]Recipient, error)
}

type fanout interface {
	Deliver(ctx context.Context, a *Alert, recipients []Recipient) (*DeliveryReport, error)
}

// AlertService coordinates broadcast scheduling, audience resolution, and
// delivery. The immediate and scheduled paths share the same
// resolve-then-deliver pipeline.
type AlertService struct {
	alerts    alertStore
	personals personalStore
	resolver  audienceResolver
	deliverer fanout
	logger    *zap.Logger
}

func NewAlertService(alerts *AlertRepository, personals *PersonalNotificationRepository, resolver *Resolver, deliverer *Deliverer, logger *zap.Logger) *AlertService {
	return &AlertService{
		alerts:    alerts,
		personals: personals,
		resolver:  resolver,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Schedule persists an alert for the runner to pick up once it is due.
func (s *AlertService) Schedule(ctx context.Context, a *Alert) error {
	now := time.Now()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Status = StatusPending
	a.SentAt = nil
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.alerts.Create(ctx, a)
}

// SendNow persists the alert as sent and fans it out immediately. The record
// is written first as the audit row; a fan-out failure is reported to the
// caller but does not unwind the write.
func (s *AlertService) SendNow(ctx context.Context, a *Alert) (*DeliveryReport, error) {
	now := time.Now()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Status = StatusSent
	a.SentAt = &now
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.alerts.Create(ctx, a); err != nil {
		return nil, err
	}

	recipients, err := s.resolver.Resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	report, err := s.deliverer.Deliver(ctx, a, recipients)
	if err != nil {
		return report, err
	}

	s.logger.Info("alert sent",
		zap.String("alert_id", a.ID.Hex()),
		zap.String("audience_type", a.AudienceType),
		zap.Int("recipients", report.Recipients),
		zap.Int("emails_failed", report.EmailsFailed))
	return report, nil
}

// ProcessDue runs one scan of due alerts. Each alert is claimed before it is
// resolved so an overlapping scan cannot process it twice; an alert whose
// resolution, entire fan-out, or sent-marking fails is released back to
// pending for the next tick. Per-alert errors never abort the rest of the
// scan.
func (s *AlertService) ProcessDue(ctx context.Context) {
	due, err := s.alerts.FindDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to fetch due alerts", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("processing due alerts", zap.Int("count", len(due)))

	for _, a := range due {
		claimed, err := s.alerts.Claim(ctx, a.ID)
		if err != nil {
			s.logger.Error("failed to claim alert", zap.String("alert_id", a.ID.Hex()), zap.Error(err))
			continue
		}
		if !claimed {
			// Another tick got there first.
			continue
		}

		recipients, err := s.resolver.Resolve(ctx, a)
		if err != nil {
			s.logger.Error("failed to resolve audience, releasing alert",
				zap.String("alert_id", a.ID.Hex()), zap.Error(err))
			s.release(ctx, a.ID)
			continue
		}

		report, err := s.deliverer.Deliver(ctx, a, recipients)
		if err != nil {
			s.logger.Error("fan-out failed, releasing alert",
				zap.String("alert_id", a.ID.Hex()), zap.Error(err))
			s.release(ctx, a.ID)
			continue
		}

		if err := s.markSent(ctx, a.ID); err != nil {
			s.logger.Error("failed to mark alert sent, releasing for retry",
				zap.String("alert_id", a.ID.Hex()), zap.Error(err))
			s.release(ctx, a.ID)
			continue
		}
		s.logger.Info("scheduled alert sent",
			zap.String("alert_id", a.ID.Hex()),
			zap.String("subject", a.Subject),
			zap.Int("recipients", report.Recipients),
			zap.Int("emails_failed", report.EmailsFailed))
	}
}

// markSent retries the terminal write once. A caller that still sees an error
// releases the alert back to pending, so the next tick re-sends it instead of
// stranding it in claimed; recipients may see a duplicate in that case.
func (s *AlertService) markSent(ctx context.Context, id primitive.ObjectID) error {
	sentAt := time.Now()
	if err := s.alerts.MarkSent(ctx, id, sentAt); err == nil {
		return nil
	}
	return s.alerts.MarkSent(ctx, id, sentAt)
}

func (s *AlertService) release(ctx context.Context, id primitive.ObjectID) {
	if err := s.alerts.Release(ctx, id); err != nil {
		s.logger.Error("failed to release claimed alert", zap.String("alert_id", id.Hex()), zap.Error(err))
	}
}

// ListPersonal returns a user's in-app notifications, newest first.
func (s *AlertService) ListPersonal(ctx context.Context, userID primitive.ObjectID) ([]*PersonalNotification, error) {
	return s.personals.ListByUser(ctx, userID)
}

// MarkRead marks one of the user's notifications read.
func (s *AlertService) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.personals.MarkRead(ctx, id, userID)
}
