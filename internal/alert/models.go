package alert

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeEmergency = "emergency"
	TypeGeneral   = "general"
	TypeFriendly  = "friendly"
)

const (
	AudienceAll         = "all"
	AudienceGrades      = "grades"
	AudienceIndividuals = "individuals"
	AudienceStaff       = "staff" // reserved, no resolution mapping yet
)

// Delivery state machine. Claim is the only pending -> claimed transition;
// MarkSent and Release are the only exits from claimed. This keeps two
// overlapping runner ticks from double-sending the same alert.
const (
	StatusPending = "pending"
	StatusClaimed = "claimed"
	StatusSent    = "sent"
)

// DeliveryMethods flags the intended channels. SMS is declared but has no
// delivery path; the fan-out logs a warning and skips it.
type DeliveryMethods struct {
	App   bool `bson:"app" json:"app"`
	Email bool `bson:"email" json:"email"`
	SMS   bool `bson:"sms" json:"sms"`
}

// Alert is one admin-authored broadcast. An alert is due for the runner iff
// status is pending, scheduled_at <= now, and sent_at is unset.
type Alert struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	SenderID           primitive.ObjectID   `bson:"sender_id" json:"senderId"`
	AlertType          string               `bson:"alert_type" json:"alertType"`
	AudienceType       string               `bson:"audience_type" json:"audienceType"`
	RecipientGrades    []string             `bson:"recipient_grades,omitempty" json:"recipientGrades,omitempty"`
	RecipientParentIDs []primitive.ObjectID `bson:"recipient_parent_ids,omitempty" json:"recipientParentIds,omitempty"`
	Subject            string               `bson:"subject" json:"subject"`
	MessageBody        string               `bson:"message_body" json:"messageBody"`
	Link               string               `bson:"link,omitempty" json:"link,omitempty"`
	DeliveryMethods    DeliveryMethods      `bson:"delivery_methods" json:"deliveryMethods"`
	ScheduledAt        *time.Time           `bson:"scheduled_at,omitempty" json:"scheduledAt,omitempty"`
	SentAt             *time.Time           `bson:"sent_at,omitempty" json:"sentAt,omitempty"`
	Status             string               `bson:"status" json:"status"`
	CreatedAt          time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time            `bson:"updated_at" json:"updatedAt"`
}

// PersonalNotification is one recipient's in-app copy of a broadcast.
// Created once per deduplicated recipient at fan-out time; only the recipient
// mutates it afterwards, by marking it read.
type PersonalNotification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"senderId"`
	AlertID     primitive.ObjectID `bson:"alert_id" json:"alertId"`
	AlertType   string             `bson:"alert_type" json:"alertType"`
	Subject     string             `bson:"subject" json:"subject"`
	MessageBody string             `bson:"message_body" json:"messageBody"`
	Link        string             `bson:"link,omitempty" json:"link,omitempty"`
	Read        bool               `bson:"read" json:"read"`
	SentAt      time.Time          `bson:"sent_at" json:"sentAt"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

func ValidAlertType(t string) bool {
	return t == TypeEmergency || t == TypeGeneral || t == TypeFriendly
}

func ValidAudienceType(t string) bool {
	return t == AudienceAll || t == AudienceGrades || t == AudienceIndividuals || t == AudienceStaff
}
