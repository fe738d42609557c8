package auth

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindParents returns every user with role parent. The audience resolver uses
// this for audienceType "all".
func (r *UserRepository) FindParents(ctx context.Context) ([]*User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"role": RoleParent})
	if err != nil {
		return nil, err
	}
	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindByIDs returns the users whose id is in ids. Ids without a matching user
// are simply absent from the result.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("email already registered")
		}
		return err
	}
	return nil
}

// AddChild appends a student id to the parent's children list.
func (r *UserRepository) AddChild(ctx context.Context, parentID, studentID primitive.ObjectID) error {
	_, err := r.collection.UpdateByID(ctx, parentID, bson.M{"$push": bson.M{"children": studentID}})
	return err
}

// RemoveChild removes a student id from the parent's children list.
func (r *UserRepository) RemoveChild(ctx context.Context, parentID, studentID primitive.ObjectID) error {
	_, err := r.collection.UpdateByID(ctx, parentID, bson.M{"$pull": bson.M{"children": studentID}})
	return err
}
