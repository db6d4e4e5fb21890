package dto

import (
	"time"

	"github.com/insight-lab/research-go-api/internal/models"
)

// NotificationCreateRequest is the payload domain services hand to the
// notification service.
type NotificationCreateRequest struct {
	RecipientID       uint                   `json:"recipient_id" validate:"required,gt=0"`
	SenderID          *uint                  `json:"sender_id" validate:"omitempty,gt=0"`
	Type              string                 `json:"type" validate:"required,max=64"`
	Title             string                 `json:"title" validate:"required,max=255"`
	Message           string                 `json:"message" validate:"required,max=10000"`
	RelatedEntityType string                 `json:"related_entity_type" validate:"omitempty,oneof=ASSIGNMENT SUBMISSION"`
	RelatedEntityID   *uint                  `json:"related_entity_id" validate:"omitempty,gt=0"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// NotificationResponse is the serialized notification.
type NotificationResponse struct {
	ID                uint                   `json:"id"`
	RecipientID       uint                   `json:"recipient_id"`
	SenderID          *uint                  `json:"sender_id,omitempty"`
	Type              string                 `json:"type"`
	Title             string                 `json:"title"`
	Message           string                 `json:"message"`
	RelatedEntityType string                 `json:"related_entity_type,omitempty"`
	RelatedEntityID   *uint                  `json:"related_entity_id,omitempty"`
	Read              bool                   `json:"read"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// NewNotificationResponse converts a Notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:                model.ID,
		RecipientID:       model.RecipientID,
		SenderID:          model.SenderID,
		Type:              model.Type,
		Title:             model.Title,
		Message:           model.Message,
		RelatedEntityType: model.RelatedEntityType,
		RelatedEntityID:   model.RelatedEntityID,
		Read:              model.Read,
		Metadata:          model.Metadata,
		CreatedAt:         model.CreatedAt,
	}
}
