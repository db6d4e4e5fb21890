package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// GradingActionRepository appends and reads the grading audit trail.
// There is deliberately no update or delete.
type GradingActionRepository interface {
	Create(ctx context.Context, action *models.GradingAction) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingAction, error)
	ListByResearcher(ctx context.Context, researcherID uint) ([]models.GradingAction, error)
}

type gradingActionRepository struct {
	db *gorm.DB
}

// NewGradingActionRepository instantiates the repository.
func NewGradingActionRepository(db *gorm.DB) GradingActionRepository {
	return &gradingActionRepository{db: db}
}

func (r *gradingActionRepository) Create(ctx context.Context, action *models.GradingAction) error {
	return conn(ctx, r.db).Create(action).Error
}

func (r *gradingActionRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradingAction, error) {
	var actions []models.GradingAction
	if err := conn(ctx, r.db).
		Preload("Grader").
		Where("submission_id = ?", submissionID).
		Order("graded_at DESC").
		Find(&actions).Error; err != nil {
		return nil, err
	}

	return actions, nil
}

func (r *gradingActionRepository) ListByResearcher(ctx context.Context, researcherID uint) ([]models.GradingAction, error) {
	var actions []models.GradingAction
	if err := conn(ctx, r.db).
		Preload("Grader").
		Joins("JOIN submissions ON submissions.id = grading_actions.submission_id").
		Joins("JOIN quizzes ON quizzes.id = submissions.quiz_id").
		Where("quizzes.researcher_id = ?", researcherID).
		Order("grading_actions.graded_at DESC").
		Find(&actions).Error; err != nil {
		return nil, err
	}

	return actions, nil
}

// GradingFeedbackRepository persists per-answer feedback notes.
type GradingFeedbackRepository interface {
	Create(ctx context.Context, feedback *models.GradingFeedback) error
	ListByAnswer(ctx context.Context, answerID uint) ([]models.GradingFeedback, error)
}

type gradingFeedbackRepository struct {
	db *gorm.DB
}

// NewGradingFeedbackRepository instantiates the repository.
func NewGradingFeedbackRepository(db *gorm.DB) GradingFeedbackRepository {
	return &gradingFeedbackRepository{db: db}
}

func (r *gradingFeedbackRepository) Create(ctx context.Context, feedback *models.GradingFeedback) error {
	return conn(ctx, r.db).Create(feedback).Error
}

func (r *gradingFeedbackRepository) ListByAnswer(ctx context.Context, answerID uint) ([]models.GradingFeedback, error) {
	var feedback []models.GradingFeedback
	if err := conn(ctx, r.db).
		Where("answer_id = ?", answerID).
		Order("created_at ASC").
		Find(&feedback).Error; err != nil {
		return nil, err
	}

	return feedback, nil
}
