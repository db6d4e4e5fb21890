package models

import (
	"strings"
	"time"
)

// Quiz kinds. Only competency quizzes produce a proficiency level.
const (
	QuizKindCompetency = "COMPETENCY"
	QuizKindBackground = "BACKGROUND"
)

// Question types. Multiple choice and true/false are machine-gradable;
// short answer always requires a human grader.
const (
	QuestionMultipleChoice = "MULTIPLE_CHOICE"
	QuestionTrueFalse      = "TRUE_FALSE"
	QuestionShortAnswer    = "SHORT_ANSWER"
)

// Quiz is an immutable quiz definition. The engine consumes it read-only;
// authoring happens in an external system.
type Quiz struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Title                 string     `gorm:"size:255;not null" json:"title"`
	Description           string     `gorm:"type:text" json:"description"`
	Kind                  string     `gorm:"size:32;not null" json:"kind"`
	ResearcherID          uint       `gorm:"not null;index" json:"researcher_id"`
	TotalPoints           int        `json:"total_points"`
	PassingThreshold      *float64   `json:"passing_threshold"`
	IntermediateThreshold *float64   `json:"intermediate_threshold"`
	AdvancedThreshold     *float64   `json:"advanced_threshold"`
	TimeLimitMinutes      *int       `json:"time_limit_minutes"`
	IsActive              bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Questions             []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`

	Researcher User `gorm:"foreignKey:ResearcherID" json:"-"`
}

// QuestionByID finds a question belonging to this quiz.
func (q Quiz) QuestionByID(questionID uint) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == questionID {
			return question, true
		}
	}
	return Question{}, false
}

// Question is one item of a quiz definition.
type Question struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	QuizID        uint             `gorm:"not null;index" json:"quiz_id"`
	Text          string           `gorm:"type:text;not null" json:"text"`
	Type          string           `gorm:"size:32;not null" json:"type"`
	Points        int              `gorm:"not null;default:1" json:"points"`
	DisplayOrder  int              `gorm:"not null;default:0" json:"display_order"`
	CorrectAnswer string           `gorm:"type:text" json:"correct_answer,omitempty"`
	Options       []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// IsObjective reports whether the question can be auto-graded.
func (q Question) IsObjective() bool {
	return q.Type == QuestionMultipleChoice || q.Type == QuestionTrueFalse
}

// CorrectOptionIDs returns the ids of all options flagged correct.
func (q Question) CorrectOptionIDs() []uint {
	ids := make([]uint, 0, len(q.Options))
	for _, option := range q.Options {
		if option.IsCorrect {
			ids = append(ids, option.ID)
		}
	}
	return ids
}

// MatchesCorrectAnswer compares free text against the canonical answer field,
// falling back to the option flagged correct when the field is empty. The
// fallback covers questions authored before the canonical field existed.
func (q Question) MatchesCorrectAnswer(text string) bool {
	given := strings.ToLower(strings.TrimSpace(text))
	if given == "" {
		return false
	}

	if canonical := strings.ToLower(strings.TrimSpace(q.CorrectAnswer)); canonical != "" {
		return given == canonical
	}

	for _, option := range q.Options {
		if option.IsCorrect && strings.EqualFold(strings.TrimSpace(option.Text), given) {
			return true
		}
	}
	return false
}

// QuestionOption is a selectable choice for MCQ and true/false questions.
type QuestionOption struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	QuestionID   uint   `gorm:"not null;index" json:"question_id"`
	Text         string `gorm:"type:text;not null" json:"text"`
	IsCorrect    bool   `gorm:"not null;default:false" json:"is_correct"`
	DisplayOrder int    `gorm:"not null;default:0" json:"display_order"`
}
