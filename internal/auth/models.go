package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleParent = "parent"
	RoleAdmin  = "admin"
)

// User is a parent or admin account. Children holds denormalized
// back-references to students owned by a parent; it is maintained on every
// student create, reparent, and delete.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Email        string               `bson:"email" json:"email"`
	Phone        string               `bson:"phone,omitempty" json:"phone,omitempty"`
	SchoolCode   string               `bson:"school_code,omitempty" json:"schoolCode,omitempty"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Role         string               `bson:"role" json:"role"`
	Children     []primitive.ObjectID `bson:"children" json:"children"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updatedAt"`
}

type SignupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Phone      string `json:"phone"`
	SchoolCode string `json:"schoolCode"`
}

type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
