package student

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lifecycle status of a student during the school day.
const (
	StatusAwaiting   = "awaiting"
	StatusCheckedIn  = "checked-in"
	StatusCheckedOut = "checked-out"
)

// Admin approval of a parent-submitted child record.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type Student struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	Grade             string             `bson:"grade" json:"grade"`
	ParentID          primitive.ObjectID `bson:"parent_id,omitempty" json:"parentId,omitempty"`
	Status            string             `bson:"status" json:"status"`
	ApprovalStatus    string             `bson:"approval_status" json:"approvalStatus"`
	LastActivity      *time.Time         `bson:"last_activity,omitempty" json:"lastActivity,omitempty"`
	EmergencyName     string             `bson:"emergency_name,omitempty" json:"emergencyName,omitempty"`
	EmergencyPhone    string             `bson:"emergency_phone,omitempty" json:"emergencyPhone,omitempty"`
	EmergencyRelation string             `bson:"emergency_relation,omitempty" json:"emergencyRelation,omitempty"`
	Allergies         string             `bson:"allergies,omitempty" json:"allergies,omitempty"`
	AuthorizedPickup  string             `bson:"authorized_pickup,omitempty" json:"authorizedPickup,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updatedAt"`
}

func ValidStatus(status string) bool {
	return status == StatusAwaiting || status == StatusCheckedIn || status == StatusCheckedOut
}

func ValidApprovalStatus(status string) bool {
	return status == ApprovalPending || status == ApprovalApproved || status == ApprovalRejected
}
