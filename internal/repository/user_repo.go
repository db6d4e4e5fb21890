package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/models"
)

// UserRepository defines the read operations the engine needs on accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}
