package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/cefr-placement-api/internal/models"
)

// FinalEvaluationRepository stores the append-only history of final levels.
type FinalEvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.FinalEvaluation) error
	LatestByUser(ctx context.Context, userID uint) (models.FinalEvaluation, error)
	ListByUser(ctx context.Context, userID uint) ([]models.FinalEvaluation, error)
}

// NewFinalEvaluationRepository constructs a final evaluation repository.
func NewFinalEvaluationRepository(db *gorm.DB) FinalEvaluationRepository {
	return &finalEvaluationRepository{db: db}
}

type finalEvaluationRepository struct {
	db *gorm.DB
}

func (r *finalEvaluationRepository) Create(ctx context.Context, evaluation *models.FinalEvaluation) error {
	if err := r.db.WithContext(ctx).Create(evaluation).Error; err != nil {
		return fmt.Errorf("%w: save final evaluation: %w", ErrRepository, err)
	}
	return nil
}

// LatestByUser returns gorm.ErrRecordNotFound when the user has no final evaluation.
func (r *finalEvaluationRepository) LatestByUser(ctx context.Context, userID uint) (models.FinalEvaluation, error) {
	var evaluation models.FinalEvaluation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		First(&evaluation).Error
	if err != nil {
		return models.FinalEvaluation{}, err
	}
	return evaluation, nil
}

func (r *finalEvaluationRepository) ListByUser(ctx context.Context, userID uint) ([]models.FinalEvaluation, error) {
	var evaluations []models.FinalEvaluation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&evaluations).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list final evaluations for user %d: %w", ErrRepository, userID, err)
	}
	return evaluations, nil
}
