package student

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrStudentNotFound = errors.New("student not found")

type StudentRepository struct {
	collection *mongo.Collection
}

func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{collection: db.Collection("students")}
}

func (r *StudentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Student, error) {
	var s Student
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindOwned fetches a student only if it belongs to the given parent.
func (r *StudentRepository) FindOwned(ctx context.Context, id, parentID primitive.ObjectID) (*Student, error) {
	var s Student
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "parent_id": parentID}).Decode(&s)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) FindByParent(ctx context.Context, parentID primitive.ObjectID) ([]*Student, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"parent_id": parentID})
	if err != nil {
		return nil, err
	}
	var students []*Student
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (r *StudentRepository) FindAll(ctx context.Context) ([]*Student, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	var students []*Student
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// FindByGrades returns every student whose grade is in grades. The audience
// resolver uses this for audienceType "grades".
func (r *StudentRepository) FindByGrades(ctx context.Context, grades []string) ([]*Student, error) {
	if len(grades) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"grade": bson.M{"$in": grades}})
	if err != nil {
		return nil, err
	}
	var students []*Student
	if err := cursor.All(ctx, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (r *StudentRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": status})
}

func (r *StudentRepository) CountAll(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *StudentRepository) Create(ctx context.Context, s *Student) error {
	_, err := r.collection.InsertOne(ctx, s)
	return err
}

func (r *StudentRepository) Update(ctx context.Context, s *Student) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": s.ID}, s)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (r *StudentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrStudentNotFound
	}
	return nil
}
