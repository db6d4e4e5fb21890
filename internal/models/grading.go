package models

import "time"

// Grading action types recorded in the audit trail.
const (
	ActionAutoGrade       = "AUTO_GRADE"
	ActionManualGrade     = "MANUAL_GRADE"
	ActionGradeAdjustment = "GRADE_ADJUSTMENT"
	ActionFeedbackAdded   = "FEEDBACK_ADDED"
	ActionFinalized       = "FINALIZED"
)

// GradingAction is one row of the append-only grading audit trail. Rows are
// created, never updated or deleted. AnswerID is nil for submission-level
// actions such as overall feedback and finalization.
type GradingAction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	AnswerID     *uint     `gorm:"index" json:"answer_id"`
	GraderID     uint      `gorm:"not null;index" json:"grader_id"`
	ActionType   string    `gorm:"size:32;not null" json:"action_type"`
	PointsBefore *float64  `json:"points_before"`
	PointsAfter  *float64  `json:"points_after"`
	Feedback     string    `gorm:"type:text" json:"feedback,omitempty"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	GradedAt     time.Time `gorm:"autoCreateTime" json:"graded_at"`

	Submission Submission `gorm:"foreignKey:SubmissionID" json:"-"`
	Grader     User       `gorm:"foreignKey:GraderID" json:"-"`
}

// GradingFeedback is a human-readable note attached to one answer,
// independent of the numeric grade.
type GradingFeedback struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AnswerID      uint      `gorm:"not null;index" json:"answer_id"`
	GraderID      uint      `gorm:"not null" json:"grader_id"`
	FeedbackText  string    `gorm:"type:text;not null" json:"feedback_text"`
	PointsAwarded *float64  `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Answer Answer `gorm:"foreignKey:AnswerID" json:"-"`
	Grader User   `gorm:"foreignKey:GraderID" json:"-"`
}
