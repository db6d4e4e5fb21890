package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// AnswerRepository defines persistence operations for per-question answers.
type AnswerRepository interface {
	GetByID(ctx context.Context, id uint) (models.Answer, error)
	GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (models.Answer, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Answer, error)
	Save(ctx context.Context, answer *models.Answer) error
	SumPointsEarned(ctx context.Context, submissionID uint) (float64, error)
	CountRequiringManualGrading(ctx context.Context, submissionID uint) (int64, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository instantiates the repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	var answer models.Answer
	if err := conn(ctx, r.db).
		Preload("Question").
		Preload("Question.Options").
		First(&answer, id).Error; err != nil {
		return models.Answer{}, err
	}

	return answer, nil
}

func (r *answerRepository) GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (models.Answer, error) {
	var answer models.Answer
	if err := conn(ctx, r.db).
		Where("submission_id = ?", submissionID).
		Where("question_id = ?", questionID).
		First(&answer).Error; err != nil {
		return models.Answer{}, err
	}

	return answer, nil
}

func (r *answerRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := conn(ctx, r.db).
		Preload("Question").
		Preload("Question.Options").
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) Save(ctx context.Context, answer *models.Answer) error {
	return conn(ctx, r.db).Save(answer).Error
}

func (r *answerRepository) SumPointsEarned(ctx context.Context, submissionID uint) (float64, error) {
	var total float64
	if err := conn(ctx, r.db).Model(&models.Answer{}).
		Where("submission_id = ?", submissionID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

func (r *answerRepository) CountRequiringManualGrading(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.Answer{}).
		Where("submission_id = ?", submissionID).
		Where("requires_manual_grading = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
