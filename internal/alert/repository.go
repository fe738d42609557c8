package alert

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrAlertNotFound        = errors.New("alert not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// AlertRepository handles DB operations for broadcast alerts.
type AlertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{collection: db.Collection("alerts")}
}

func (r *AlertRepository) Create(ctx context.Context, a *Alert) error {
	_, err := r.collection.InsertOne(ctx, a)
	return err
}

// FindDue fetches alerts that are pending, scheduled at or before now, and
// never sent. Alerts with sent_at set are excluded forever.
func (r *AlertRepository) FindDue(ctx context.Context, now time.Time) ([]*Alert, error) {
	filter := bson.M{
		"status":       StatusPending,
		"scheduled_at": bson.M{"$lte": now},
		"sent_at":      bson.M{"$exists": false},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var alerts []*Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Claim atomically moves an alert from pending to claimed. It returns false
// when the alert is no longer pending, meaning another tick owns it.
func (r *AlertRepository) Claim(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusPending},
		bson.M{"$set": bson.M{"status": StatusClaimed, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	// Matched means the pending filter hit; modified can read 0 on a no-op
	// timestamp write and must not be mistaken for a lost claim.
	return res.MatchedCount == 1, nil
}

// Release returns a claimed alert to pending so the next tick retries it.
func (r *AlertRepository) Release(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": StatusClaimed},
		bson.M{"$set": bson.M{"status": StatusPending, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// MarkSent records the sole terminal transition. Once sent_at is set the
// alert is excluded from every future due scan.
func (r *AlertRepository) MarkSent(ctx context.Context, id primitive.ObjectID, sentAt time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": StatusSent}},
		bson.M{"$set": bson.M{"status": StatusSent, "sent_at": sentAt, "updated_at": sentAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *AlertRepository) CountPending(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": StatusPending})
}

// PersonalNotificationRepository handles per-recipient in-app records.
type PersonalNotificationRepository struct {
	collection *mongo.Collection
}

func NewPersonalNotificationRepository(db *mongo.Database) *PersonalNotificationRepository {
	return &PersonalNotificationRepository{collection: db.Collection("personal_notifications")}
}

// CreateBatch inserts one record per recipient in a single write.
func (r *PersonalNotificationRepository) CreateBatch(ctx context.Context, notes []*PersonalNotification) error {
	if len(notes) == 0 {
		return nil
	}
	docs := make([]interface{}, len(notes))
	for i, n := range notes {
		docs[i] = n
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// ListByUser returns a recipient's notifications, newest first.
func (r *PersonalNotificationRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*PersonalNotification, error) {
	opts := options.Find().SetSort(bson.M{"sent_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var notes []*PersonalNotification
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkRead flips the read flag, scoped to the owning user.
func (r *PersonalNotificationRepository) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
