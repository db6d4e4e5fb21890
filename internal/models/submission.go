package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus tracks one attempt through grading. Transitions only move
// forward: IN_PROGRESS -> SUBMITTED -> GRADED -> RETURNED.
type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "IN_PROGRESS"
	SubmissionSubmitted  SubmissionStatus = "SUBMITTED"
	SubmissionGraded     SubmissionStatus = "GRADED"
	SubmissionReturned   SubmissionStatus = "RETURNED"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionInProgress: {SubmissionSubmitted},
	SubmissionSubmitted:  {SubmissionGraded},
	SubmissionGraded:     {SubmissionReturned},
	SubmissionReturned:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	for _, allowed := range submissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Submission is one attempt at an assignment's quiz. The composite unique
// index on (assignment_id, attempt_number) is what resolves concurrent
// start-attempt races: exactly one row survives the insert.
type Submission struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	AssignmentID          uint             `gorm:"not null;uniqueIndex:idx_submission_assignment_attempt" json:"assignment_id"`
	ParticipantID         uint             `gorm:"not null;index" json:"participant_id"`
	QuizID                uint             `gorm:"not null;index" json:"quiz_id"`
	AttemptNumber         int              `gorm:"not null;uniqueIndex:idx_submission_assignment_attempt" json:"attempt_number"`
	Status                SubmissionStatus `gorm:"size:32;not null;default:IN_PROGRESS" json:"status"`
	StartedAt             time.Time        `gorm:"autoCreateTime" json:"started_at"`
	SubmittedAt           *time.Time       `json:"submitted_at"`
	GradedAt              *time.Time       `json:"graded_at"`
	AutoScore             *float64         `json:"auto_score"`
	ManualScore           *float64         `json:"manual_score"`
	FinalScore            *float64         `json:"final_score"`
	TotalPointsEarned     int              `json:"total_points_earned"`
	TotalPointsPossible   int              `json:"total_points_possible"`
	Passed                *bool            `json:"passed"`
	RequiresManualGrading bool             `gorm:"not null;default:false" json:"requires_manual_grading"`
	TimeTakenMinutes      *int             `json:"time_taken_minutes"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`

	Assignment  Assignment `gorm:"foreignKey:AssignmentID" json:"-"`
	Participant User       `gorm:"foreignKey:ParticipantID" json:"-"`
	Quiz        Quiz       `gorm:"foreignKey:QuizID" json:"-"`
	Answers     []Answer   `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

// Submit closes the attempt and stamps the time taken.
func (s *Submission) Submit(now time.Time) bool {
	if !s.Status.CanTransition(SubmissionSubmitted) {
		return false
	}
	s.Status = SubmissionSubmitted
	s.SubmittedAt = &now

	minutes := int(now.Sub(s.StartedAt).Minutes())
	s.TimeTakenMinutes = &minutes
	return true
}

// MarkGraded records that grading is complete.
func (s *Submission) MarkGraded(now time.Time) bool {
	if !s.Status.CanTransition(SubmissionGraded) {
		return false
	}
	s.Status = SubmissionGraded
	s.GradedAt = &now
	return true
}

// Return releases results to the participant.
func (s *Submission) Return() bool {
	if !s.Status.CanTransition(SubmissionReturned) {
		return false
	}
	s.Status = SubmissionReturned
	return true
}

// Answer holds one participant response.  Free text and selected option ids
// are mutually exclusive depending on the question type.
type Answer struct {
	ID                    uint                      `gorm:"primaryKey" json:"id"`
	SubmissionID          uint                      `gorm:"not null;uniqueIndex:idx_answer_submission_question" json:"submission_id"`
	QuestionID            uint                      `gorm:"not null;uniqueIndex:idx_answer_submission_question" json:"question_id"`
	AnswerText            string                    `gorm:"type:text" json:"answer_text,omitempty"`
	SelectedOptionIDs     datatypes.JSONSlice[uint] `json:"selected_option_ids,omitempty"`
	IsCorrect             *bool                     `json:"is_correct"`
	PointsEarned          *float64                  `json:"points_earned"`
	PointsPossible        int                       `gorm:"not null" json:"points_possible"`
	RequiresManualGrading bool                      `gorm:"not null;default:false" json:"requires_manual_grading"`
	AnsweredAt            time.Time                 `gorm:"autoCreateTime" json:"answered_at"`
	UpdatedAt             time.Time                 `json:"updated_at"`

	Submission Submission `gorm:"foreignKey:SubmissionID" json:"-"`
	Question   Question   `gorm:"foreignKey:QuestionID" json:"-"`
}
