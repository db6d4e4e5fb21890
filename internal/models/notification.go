package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the quiz engine.
const (
	NotificationQuizInvitation = "QUIZ_INVITATION"
	NotificationQuizAccepted   = "QUIZ_INVITATION_ACCEPTED"
	NotificationQuizDeclined   = "QUIZ_INVITATION_DECLINED"
	NotificationQuizSubmitted  = "QUIZ_SUBMITTED"
	NotificationQuizGraded     = "QUIZ_GRADED"
)

// Related entity types for notification deep links.
const (
	EntityAssignment = "ASSIGNMENT"
	EntitySubmission = "SUBMISSION"
)

// Notification is a persisted in-app message for one user. Delivery fan-out
// happens over Redis and NATS; the row is the source of truth.
type Notification struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	RecipientID       uint              `gorm:"not null;index" json:"recipient_id"`
	SenderID          *uint             `json:"sender_id"`
	Type              string            `gorm:"size:64;not null" json:"type"`
	Title             string            `gorm:"size:255;not null" json:"title"`
	Message           string            `gorm:"type:text" json:"message"`
	RelatedEntityType string            `gorm:"size:32" json:"related_entity_type,omitempty"`
	RelatedEntityID   *uint             `json:"related_entity_id"`
	Read              bool              `gorm:"not null;default:false" json:"read"`
	Metadata          datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
