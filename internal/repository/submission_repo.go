package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	ResearcherID *uint
	Status       *models.SubmissionStatus
}

// SubmissionRepository defines persistence operations for quiz attempts.
// Create relies on the (assignment_id, attempt_number) unique index; callers
// must treat gorm.ErrDuplicatedKey as "another request won the race".
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndAttempt(ctx context.Context, assignmentID uint, attemptNumber int) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	UpdateWithAssignment(ctx context.Context, submission *models.Submission, assignment *models.Assignment) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Answers")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndAttempt(ctx context.Context, assignmentID uint, attemptNumber int) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("attempt_number = ?", attemptNumber).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.ResearcherID != nil {
		query = query.
			Joins("JOIN quizzes ON quizzes.id = submissions.quiz_id").
			Where("quizzes.researcher_id = ?", *filter.ResearcherID)
	}

	if filter.Status != nil {
		query = query.Where("submissions.status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("submissions.created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return conn(ctx, r.db).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return conn(ctx, r.db).Save(submission).Error
}

// UpdateWithAssignment persists a submission together with its parent
// assignment in one transaction so grading outcomes and lifecycle state
// never diverge. Inside a Transactor scope it joins the caller's transaction.
func (r *submissionRepository) UpdateWithAssignment(ctx context.Context, submission *models.Submission, assignment *models.Assignment) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(submission).Error; err != nil {
			return err
		}

		return tx.Save(assignment).Error
	})
}
