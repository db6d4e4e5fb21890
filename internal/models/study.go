package models

import "time"

// Study lifecycle states advanced by the daily sweep.
const (
	StudyStatusDraft     = "draft"
	StudyStatusActive    = "active"
	StudyStatusCompleted = "completed"
)

// Study groups participants and quiz assignments under one research effort.
type Study struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	ResearcherID uint       `gorm:"not null;index" json:"researcher_id"`
	Status       string     `gorm:"size:32;not null;default:draft" json:"status"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Researcher User `gorm:"foreignKey:ResearcherID" json:"-"`
}

// Enrollment statuses. A participant must reach at least EnrollmentEnrolled
// before quizzes can be assigned in the study context.
const (
	EnrollmentInvited    = "INVITED"
	EnrollmentEnrolled   = "ENROLLED"
	EnrollmentInProgress = "IN_PROGRESS"
	EnrollmentCompleted  = "COMPLETED"
	EnrollmentWithdrawn  = "WITHDRAWN"
)

// StudyEnrollment links a participant to a study.
type StudyEnrollment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudyID       uint      `gorm:"not null;uniqueIndex:idx_enrollment_study_participant" json:"study_id"`
	ParticipantID uint      `gorm:"not null;uniqueIndex:idx_enrollment_study_participant" json:"participant_id"`
	Status        string    `gorm:"size:32;not null;default:INVITED" json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Study       Study `gorm:"foreignKey:StudyID" json:"-"`
	Participant User  `gorm:"foreignKey:ParticipantID" json:"-"`
}

// CanReceiveAssignments reports whether the enrollment status permits quiz
// assignment within the study.
func (e StudyEnrollment) CanReceiveAssignments() bool {
	switch e.Status {
	case EnrollmentEnrolled, EnrollmentInProgress, EnrollmentCompleted:
		return true
	default:
		return false
	}
}
