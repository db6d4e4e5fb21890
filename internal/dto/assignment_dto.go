package dto

import (
	"time"

	"github.com/insight-lab/research-go-api/internal/models"
)

// AssignmentCreateRequest is the batch payload for assigning a quiz to
// multiple participants.
type AssignmentCreateRequest struct {
	QuizID         uint       `json:"quiz_id" validate:"required,gt=0"`
	ParticipantIDs []uint     `json:"participant_ids" validate:"required,min=1,dive,gt=0"`
	StudyID        *uint      `json:"study_id" validate:"omitempty,gt=0"`
	DueDate        *time.Time `json:"due_date"`
	MaxAttempts    int        `json:"max_attempts" validate:"omitempty,gte=0,lte=10"`
	AllowRetake    bool       `json:"allow_retake"`
	Notes          string     `json:"notes" validate:"omitempty,max=4000"`
}

// AssignmentDeclineRequest carries an optional reason for declining.
type AssignmentDeclineRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=4000"`
}

// BatchAssignmentResponse summarizes the outcome of a batch create. Per-
// participant failures never abort the batch; they are reported here.
type BatchAssignmentResponse struct {
	Requested int      `json:"requested"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// AssignmentResponse is the serialized view of an assignment.
type AssignmentResponse struct {
	ID            uint                     `json:"id"`
	QuizID        uint                     `json:"quiz_id"`
	QuizTitle     string                   `json:"quiz_title,omitempty"`
	ParticipantID uint                     `json:"participant_id"`
	ResearcherID  uint                     `json:"researcher_id"`
	StudyID       *uint                    `json:"study_id,omitempty"`
	Status        models.AssignmentStatus  `json:"status"`
	DueDate       *time.Time               `json:"due_date,omitempty"`
	MaxAttempts   int                      `json:"max_attempts"`
	AttemptsTaken int                      `json:"attempts_taken"`
	AllowRetake   bool                     `json:"allow_retake"`
	CanRetake     bool                     `json:"can_retake"`
	Overdue       bool                     `json:"overdue"`
	Notes         string                   `json:"notes,omitempty"`
	DeclineReason string                   `json:"decline_reason,omitempty"`
	AssignedAt    time.Time                `json:"assigned_at"`
	AcceptedAt    *time.Time               `json:"accepted_at,omitempty"`
	DeclinedAt    *time.Time               `json:"declined_at,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	Score         *float64                 `json:"score,omitempty"`
	Passed        *bool                    `json:"passed,omitempty"`
	Level         *models.ParticipantLevel `json:"level,omitempty"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment, now time.Time) AssignmentResponse {
	return AssignmentResponse{
		ID:            model.ID,
		QuizID:        model.QuizID,
		QuizTitle:     model.Quiz.Title,
		ParticipantID: model.ParticipantID,
		ResearcherID:  model.ResearcherID,
		StudyID:       model.StudyID,
		Status:        model.Status,
		DueDate:       model.DueDate,
		MaxAttempts:   model.MaxAttempts,
		AttemptsTaken: model.AttemptsTaken,
		AllowRetake:   model.AllowRetake,
		CanRetake:     model.CanRetake(),
		Overdue:       model.IsOverdue(now),
		Notes:         model.Notes,
		DeclineReason: model.DeclineReason,
		AssignedAt:    model.AssignedAt,
		AcceptedAt:    model.AcceptedAt,
		DeclinedAt:    model.DeclinedAt,
		CompletedAt:   model.CompletedAt,
		Score:         model.Score,
		Passed:        model.Passed,
		Level:         model.Level,
	}
}
