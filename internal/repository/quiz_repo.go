package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// QuizRepository reads immutable quiz definitions. The engine never writes
// quizzes; authoring lives in an external system.
type QuizRepository interface {
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	GetWithQuestions(ctx context.Context, id uint) (models.Quiz, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository instantiates the repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}

	return quiz, nil
}

func (r *quizRepository) GetWithQuestions(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}

	return quiz, nil
}
