package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// StudyRepository exposes the study reads the engine needs plus the lifecycle
// sweep used by the daily scheduler.
type StudyRepository interface {
	GetByID(ctx context.Context, id uint) (models.Study, error)
	AdvanceLifecycle(ctx context.Context, now time.Time) (int64, error)
}

type studyRepository struct {
	db *gorm.DB
}

// NewStudyRepository instantiates the repository.
func NewStudyRepository(db *gorm.DB) StudyRepository {
	return &studyRepository{db: db}
}

func (r *studyRepository) GetByID(ctx context.Context, id uint) (models.Study, error) {
	var study models.Study
	if err := r.db.WithContext(ctx).First(&study, id).Error; err != nil {
		return models.Study{}, err
	}

	return study, nil
}

// AdvanceLifecycle activates studies whose start date has arrived and
// completes studies whose end date has passed. Returns rows changed.
func (r *studyRepository) AdvanceLifecycle(ctx context.Context, now time.Time) (int64, error) {
	var changed int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activated := tx.Model(&models.Study{}).
			Where("status = ?", models.StudyStatusDraft).
			Where("start_date IS NOT NULL AND start_date <= ?", now).
			Update("status", models.StudyStatusActive)
		if activated.Error != nil {
			return activated.Error
		}

		completed := tx.Model(&models.Study{}).
			Where("status = ?", models.StudyStatusActive).
			Where("end_date IS NOT NULL AND end_date <= ?", now).
			Update("status", models.StudyStatusCompleted)
		if completed.Error != nil {
			return completed.Error
		}

		changed = activated.RowsAffected + completed.RowsAffected
		return nil
	})

	return changed, err
}

// EnrollmentRepository reads study enrollments for eligibility checks.
type EnrollmentRepository interface {
	GetByStudyAndParticipant(ctx context.Context, studyID, participantID uint) (models.StudyEnrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates the repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) GetByStudyAndParticipant(ctx context.Context, studyID, participantID uint) (models.StudyEnrollment, error) {
	var enrollment models.StudyEnrollment
	if err := r.db.WithContext(ctx).
		Where("study_id = ?", studyID).
		Where("participant_id = ?", participantID).
		First(&enrollment).Error; err != nil {
		return models.StudyEnrollment{}, err
	}

	return enrollment, nil
}
