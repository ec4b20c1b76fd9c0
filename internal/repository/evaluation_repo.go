package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/cefr-placement-api/internal/models"
)

// EvaluationRepository stores the per-answer records of the first round.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	ListByUser(ctx context.Context, userID uint) ([]models.Evaluation, error)
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

type evaluationRepository struct {
	db *gorm.DB
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	if err := r.db.WithContext(ctx).Create(evaluation).Error; err != nil {
		return fmt.Errorf("%w: save evaluation: %w", ErrRepository, err)
	}
	return nil
}

func (r *evaluationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list evaluations for user %d: %w", ErrRepository, userID, err)
	}
	return evaluations, nil
}
