package dto

import (
	"time"

	"github.com/insight-lab/research-go-api/internal/models"
)

// SubmitAnswerRequest writes or overwrites one answer. Exactly one of
// AnswerText and SelectedOptionIDs applies depending on the question type.
type SubmitAnswerRequest struct {
	QuestionID        uint   `json:"question_id" validate:"required,gt=0"`
	AnswerText        string `json:"answer_text" validate:"omitempty,max=10000"`
	SelectedOptionIDs []uint `json:"selected_option_ids" validate:"omitempty,dive,gt=0"`
}

// SubmissionResponse is the serialized view of one quiz attempt.
type SubmissionResponse struct {
	ID                    uint                    `json:"id"`
	AssignmentID          uint                    `json:"assignment_id"`
	ParticipantID         uint                    `json:"participant_id"`
	QuizID                uint                    `json:"quiz_id"`
	AttemptNumber         int                     `json:"attempt_number"`
	Status                models.SubmissionStatus `json:"status"`
	StartedAt             time.Time               `json:"started_at"`
	SubmittedAt           *time.Time              `json:"submitted_at,omitempty"`
	GradedAt              *time.Time              `json:"graded_at,omitempty"`
	AutoScore             *float64                `json:"auto_score,omitempty"`
	ManualScore           *float64                `json:"manual_score,omitempty"`
	FinalScore            *float64                `json:"final_score,omitempty"`
	TotalPointsEarned     int                     `json:"total_points_earned"`
	TotalPointsPossible   int                     `json:"total_points_possible"`
	Passed                *bool                   `json:"passed,omitempty"`
	RequiresManualGrading bool                    `json:"requires_manual_grading"`
	TimeTakenMinutes      *int                    `json:"time_taken_minutes,omitempty"`
	Answers               []AnswerResponse        `json:"answers,omitempty"`
}

// AnswerResponse is the serialized view of one answer. Grading fields are
// omitted while the attempt is still in progress.
type AnswerResponse struct {
	ID                    uint      `json:"id"`
	SubmissionID          uint      `json:"submission_id"`
	QuestionID            uint      `json:"question_id"`
	AnswerText            string    `json:"answer_text,omitempty"`
	SelectedOptionIDs     []uint    `json:"selected_option_ids,omitempty"`
	IsCorrect             *bool     `json:"is_correct,omitempty"`
	PointsEarned          *float64  `json:"points_earned,omitempty"`
	PointsPossible        int       `json:"points_possible"`
	RequiresManualGrading bool      `json:"requires_manual_grading"`
	AnsweredAt            time.Time `json:"answered_at"`
}

// QuizTakingResponse is the participant-facing view of an in-progress quiz.
// It must never contain correctness flags, canonical answers, or scores.
type QuizTakingResponse struct {
	SubmissionID     uint                 `json:"submission_id"`
	QuizID           uint                 `json:"quiz_id"`
	QuizTitle        string               `json:"quiz_title"`
	QuizDescription  string               `json:"quiz_description,omitempty"`
	TimeLimitMinutes *int                 `json:"time_limit_minutes,omitempty"`
	TotalPoints      int                  `json:"total_points"`
	StartedAt        time.Time            `json:"started_at"`
	Questions        []QuizQuestionView   `json:"questions"`
	SavedAnswers     []AnswerResponse     `json:"saved_answers"`
}

// QuizQuestionView is one question as presented to the participant.
type QuizQuestionView struct {
	ID           uint                 `json:"id"`
	Text         string               `json:"text"`
	Type         string               `json:"type"`
	Points       int                  `json:"points"`
	DisplayOrder int                  `json:"display_order"`
	Options      []QuestionOptionView `json:"options,omitempty"`
}

// QuestionOptionView is one selectable option, stripped of correctness.
type QuestionOptionView struct {
	ID           uint   `json:"id"`
	Text         string `json:"text"`
	DisplayOrder int    `json:"display_order"`
}

// NewSubmissionResponse converts a Submission model into a DTO, including
// any preloaded answers with full grading detail.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:                    model.ID,
		AssignmentID:          model.AssignmentID,
		ParticipantID:         model.ParticipantID,
		QuizID:                model.QuizID,
		AttemptNumber:         model.AttemptNumber,
		Status:                model.Status,
		StartedAt:             model.StartedAt,
		SubmittedAt:           model.SubmittedAt,
		GradedAt:              model.GradedAt,
		AutoScore:             model.AutoScore,
		ManualScore:           model.ManualScore,
		FinalScore:            model.FinalScore,
		TotalPointsEarned:     model.TotalPointsEarned,
		TotalPointsPossible:   model.TotalPointsPossible,
		Passed:                model.Passed,
		RequiresManualGrading: model.RequiresManualGrading,
		TimeTakenMinutes:      model.TimeTakenMinutes,
	}

	for _, answer := range model.Answers {
		response.Answers = append(response.Answers, NewAnswerResponse(answer))
	}

	return response
}

// NewAnswerResponse converts an Answer model into a DTO with grading fields.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:                    model.ID,
		SubmissionID:          model.SubmissionID,
		QuestionID:            model.QuestionID,
		AnswerText:            model.AnswerText,
		SelectedOptionIDs:     model.SelectedOptionIDs,
		IsCorrect:             model.IsCorrect,
		PointsEarned:          model.PointsEarned,
		PointsPossible:        model.PointsPossible,
		RequiresManualGrading: model.RequiresManualGrading,
		AnsweredAt:            model.AnsweredAt,
	}
}

// NewAnswerForTaking converts an Answer into the participant-facing view,
// stripping correctness and points earned while the quiz is in progress.
func NewAnswerForTaking(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:                model.ID,
		SubmissionID:      model.SubmissionID,
		QuestionID:        model.QuestionID,
		AnswerText:        model.AnswerText,
		SelectedOptionIDs: model.SelectedOptionIDs,
		PointsPossible:    model.PointsPossible,
		AnsweredAt:        model.AnsweredAt,
	}
}

// NewQuizQuestionView converts a Question into the participant-facing view.
func NewQuizQuestionView(model models.Question) QuizQuestionView {
	view := QuizQuestionView{
		ID:           model.ID,
		Text:         model.Text,
		Type:         model.Type,
		Points:       model.Points,
		DisplayOrder: model.DisplayOrder,
	}

	for _, option := range model.Options {
		view.Options = append(view.Options, QuestionOptionView{
			ID:           option.ID,
			Text:         option.Text,
			DisplayOrder: option.DisplayOrder,
		})
	}

	return view
}
