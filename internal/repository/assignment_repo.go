package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	ParticipantID *uint
	ResearcherID  *uint
	QuizID        *uint
	StudyID       *uint
	Status        *models.AssignmentStatus
}

// AssignmentRepository defines persistence operations for quiz assignments.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error)
	ExistsByParticipantAndQuiz(ctx context.Context, participantID, quizID uint) (bool, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db).Model(&models.Assignment{}).
		Preload("Quiz").
		Preload("Participant")
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.baseQuery(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, error) {
	query := r.baseQuery(ctx)

	if filter.ParticipantID != nil {
		query = query.Where("participant_id = ?", *filter.ParticipantID)
	}

	if filter.ResearcherID != nil {
		query = query.Where("researcher_id = ?", *filter.ResearcherID)
	}

	if filter.QuizID != nil {
		query = query.Where("quiz_id = ?", *filter.QuizID)
	}

	if filter.StudyID != nil {
		query = query.Where("study_id = ?", *filter.StudyID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var assignments []models.Assignment
	if err := query.Order("assigned_at DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ExistsByParticipantAndQuiz(ctx context.Context, participantID, quizID uint) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.Assignment{}).
		Where("participant_id = ?", participantID).
		Where("quiz_id = ?", quizID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return conn(ctx, r.db).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return conn(ctx, r.db).Save(assignment).Error
}

func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&models.Assignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
