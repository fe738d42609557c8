package pickup

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeDropoff = "dropoff"
	TypePickup  = "pickup"
)

// ActivityLog records one drop-off or pick-up event.
type ActivityLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID primitive.ObjectID `bson:"student_id" json:"studentId"`
	ParentID  primitive.ObjectID `bson:"parent_id" json:"parentId"`
	Type      string             `bson:"type" json:"type"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
