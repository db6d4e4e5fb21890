package dto

import (
	"time"

	"github.com/insight-lab/research-go-api/internal/models"
)

// ManualGradeRequest grades a single answer.
type ManualGradeRequest struct {
	AnswerID     uint    `json:"answer_id" validate:"required,gt=0"`
	PointsEarned float64 `json:"points_earned" validate:"gte=0"`
	Feedback     string  `json:"feedback" validate:"omitempty,max=10000"`
	Notes        string  `json:"notes" validate:"omitempty,max=10000"`
}

// BulkGradeRequest applies several manual grades as one unit, with an
// optional submission-level comment.
type BulkGradeRequest struct {
	Grades          []ManualGradeRequest `json:"grades" validate:"required,min=1,dive"`
	OverallFeedback string               `json:"overall_feedback" validate:"omitempty,max=10000"`
}

// FinalizeRequest closes out grading for a submission.
type FinalizeRequest struct {
	ReturnToParticipant bool   `json:"return_to_participant"`
	FinalComments       string `json:"final_comments" validate:"omitempty,max=10000"`
}

// GradingActionResponse is one row of the grading audit trail.
type GradingActionResponse struct {
	ID           uint      `json:"id"`
	SubmissionID uint      `json:"submission_id"`
	AnswerID     *uint     `json:"answer_id,omitempty"`
	GraderID     uint      `json:"grader_id"`
	GraderName   string    `json:"grader_name,omitempty"`
	ActionType   string    `json:"action_type"`
	PointsBefore *float64  `json:"points_before,omitempty"`
	PointsAfter  *float64  `json:"points_after,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	GradedAt     time.Time `json:"graded_at"`
}

// SubmissionSummaryResponse is the researcher-facing grading queue row.
type SubmissionSummaryResponse struct {
	ID                    uint                    `json:"id"`
	ParticipantID         uint                    `json:"participant_id"`
	QuizID                uint                    `json:"quiz_id"`
	AttemptNumber         int                     `json:"attempt_number"`
	Status                models.SubmissionStatus `json:"status"`
	SubmittedAt           *time.Time              `json:"submitted_at,omitempty"`
	FinalScore            *float64                `json:"final_score,omitempty"`
	Passed                *bool                   `json:"passed,omitempty"`
	RequiresManualGrading bool                    `json:"requires_manual_grading"`
}

// NewGradingActionResponse converts a GradingAction model into a DTO.
func NewGradingActionResponse(model models.GradingAction) GradingActionResponse {
	return GradingActionResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		AnswerID:     model.AnswerID,
		GraderID:     model.GraderID,
		GraderName:   model.Grader.FullName,
		ActionType:   model.ActionType,
		PointsBefore: model.PointsBefore,
		PointsAfter:  model.PointsAfter,
		Feedback:     model.Feedback,
		Notes:        model.Notes,
		GradedAt:     model.GradedAt,
	}
}

// NewSubmissionSummaryResponse converts a Submission into a queue row.
func NewSubmissionSummaryResponse(model models.Submission) SubmissionSummaryResponse {
	return SubmissionSummaryResponse{
		ID:                    model.ID,
		ParticipantID:         model.ParticipantID,
		QuizID:                model.QuizID,
		AttemptNumber:         model.AttemptNumber,
		Status:                model.Status,
		SubmittedAt:           model.SubmittedAt,
		FinalScore:            model.FinalScore,
		Passed:                model.Passed,
		RequiresManualGrading: model.RequiresManualGrading,
	}
}
