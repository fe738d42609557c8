package pickup

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LogRepository struct {
	collection *mongo.Collection
}

func NewLogRepository(db *mongo.Database) *LogRepository {
	return &LogRepository{collection: db.Collection("logs")}
}

func (r *LogRepository) Create(ctx context.Context, entry *ActivityLog) error {
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// FindRecent returns logs newest first with limit/skip pagination.
func (r *LogRepository) FindRecent(ctx context.Context, limit, skip int64) ([]*ActivityLog, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": -1}).SetLimit(limit).SetSkip(skip)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var logs []*ActivityLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *LogRepository) CountAll(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// DeleteByStudent purges a student's whole activity history. Used when the
// student is removed from the roster.
func (r *LogRepository) DeleteByStudent(ctx context.Context, studentID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"student_id": studentID})
	return err
}
