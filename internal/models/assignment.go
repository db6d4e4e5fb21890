package models

import "time"

// AssignmentStatus tracks a participant's relationship to an assigned quiz.
type AssignmentStatus string

// Assignment statuses. DECLINED is terminal; COMPLETED is terminal except
// through the explicit retake path.
const (
	AssignmentPending    AssignmentStatus = "PENDING"
	AssignmentAccepted   AssignmentStatus = "ACCEPTED"
	AssignmentDeclined   AssignmentStatus = "DECLINED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
)

// assignmentTransitions is the closed transition table for assignments.
// Completing from COMPLETED re-enters via a retake attempt.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentPending:    {AssignmentAccepted, AssignmentDeclined},
	AssignmentAccepted:   {AssignmentInProgress},
	AssignmentInProgress: {AssignmentCompleted},
	AssignmentCompleted:  {AssignmentInProgress},
	AssignmentDeclined:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s AssignmentStatus) CanTransition(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParticipantLevel is the proficiency tier derived from a passed competency quiz.
type ParticipantLevel string

const (
	LevelBeginner     ParticipantLevel = "BEGINNER"
	LevelIntermediate ParticipantLevel = "INTERMEDIATE"
	LevelAdvanced     ParticipantLevel = "ADVANCED"
)

// Assignment records a quiz offered to one participant, from invitation
// through scored completion.
type Assignment struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	QuizID        uint              `gorm:"not null;index" json:"quiz_id"`
	ParticipantID uint              `gorm:"not null;index" json:"participant_id"`
	ResearcherID  uint              `gorm:"not null;index" json:"researcher_id"`
	StudyID       *uint             `gorm:"index" json:"study_id"`
	Status        AssignmentStatus  `gorm:"size:32;not null;default:PENDING" json:"status"`
	DueDate       *time.Time        `json:"due_date"`
	MaxAttempts   int               `gorm:"not null;default:1" json:"max_attempts"`
	AttemptsTaken int               `gorm:"not null;default:0" json:"attempts_taken"`
	AllowRetake   bool              `gorm:"not null;default:false" json:"allow_retake"`
	Notes         string            `gorm:"type:text" json:"notes,omitempty"`
	DeclineReason string            `gorm:"type:text" json:"decline_reason,omitempty"`
	AssignedAt    time.Time         `gorm:"autoCreateTime" json:"assigned_at"`
	AcceptedAt    *time.Time        `json:"accepted_at"`
	DeclinedAt    *time.Time        `json:"declined_at"`
	CompletedAt   *time.Time        `json:"completed_at"`
	Score         *float64          `json:"score"`
	Passed        *bool             `json:"passed"`
	Level         *ParticipantLevel `gorm:"size:32" json:"level"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`

	Quiz        Quiz  `gorm:"foreignKey:QuizID" json:"-"`
	Participant User  `gorm:"foreignKey:ParticipantID" json:"-"`
	Researcher  User  `gorm:"foreignKey:ResearcherID" json:"-"`
	Study       Study `gorm:"foreignKey:StudyID" json:"-"`
}

// Accept moves the assignment out of PENDING.
func (a *Assignment) Accept(now time.Time) bool {
	if !a.Status.CanTransition(AssignmentAccepted) {
		return false
	}
	a.Status = AssignmentAccepted
	a.AcceptedAt = &now
	return true
}

// Decline terminally refuses the invitation.
func (a *Assignment) Decline(reason string, now time.Time) bool {
	if !a.Status.CanTransition(AssignmentDeclined) {
		return false
	}
	a.Status = AssignmentDeclined
	a.DeclinedAt = &now
	a.DeclineReason = reason
	return true
}

// Start marks the assignment in progress when a first or retake attempt opens.
func (a *Assignment) Start() bool {
	if a.Status == AssignmentInProgress {
		return true
	}
	if !a.Status.CanTransition(AssignmentInProgress) {
		return false
	}
	a.Status = AssignmentInProgress
	return true
}

// Complete closes out the assignment with the graded result.
func (a *Assignment) Complete(score *float64, passed *bool, level *ParticipantLevel, now time.Time) bool {
	if !a.Status.CanTransition(AssignmentCompleted) {
		return false
	}
	a.Status = AssignmentCompleted
	a.CompletedAt = &now
	a.Score = score
	a.Passed = passed
	a.Level = level
	a.AttemptsTaken++
	return true
}

// CanRetake reports whether another attempt may be opened after completion.
func (a Assignment) CanRetake() bool {
	return a.AllowRetake &&
		a.Status == AssignmentCompleted &&
		(a.MaxAttempts <= 0 || a.AttemptsTaken < a.MaxAttempts)
}

// IsOverdue reports whether the due date passed without completion. Overdue
// is a derived predicate, not a status.
func (a Assignment) IsOverdue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate) && a.Status != AssignmentCompleted
}
