package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/cefr-placement-api/internal/models"
)

// DefaultEvaluationContextTTL bounds how long the second round may lag the first.
const DefaultEvaluationContextTTL = 24 * time.Hour

// EvaluationContextRepository keeps the first-round outcome per user between rounds.
type EvaluationContextRepository interface {
	Save(ctx context.Context, userID uint, evaluation models.EvaluationContext) error
	Get(ctx context.Context, userID uint) (models.EvaluationContext, error)
	Delete(ctx context.Context, userID uint) error
}

// NewEvaluationContextRepository builds a Redis-backed context store.
func NewEvaluationContextRepository(client *redis.Client, ttl time.Duration) EvaluationContextRepository {
	if ttl <= 0 {
		ttl = DefaultEvaluationContextTTL
	}
	return &evaluationContextRepository{client: client, ttl: ttl}
}

// EvaluationContextKey returns the cache key holding the context of userID.
func EvaluationContextKey(userID uint) string {
	return fmt.Sprintf("evaluation:user:%d", userID)
}

type evaluationContextRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// Save overwrites any context already stored for the user.
func (r *evaluationContextRepository) Save(ctx context.Context, userID uint, evaluation models.EvaluationContext) error {
	payload, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("%w: encode evaluation context: %w", ErrCache, err)
	}

	if err := r.client.Set(ctx, EvaluationContextKey(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save evaluation context: %w", ErrCache, err)
	}
	return nil
}

// Get returns ErrEvaluationContextNotFound when nothing is stored or the entry expired.
func (r *evaluationContextRepository) Get(ctx context.Context, userID uint) (models.EvaluationContext, error) {
	raw, err := r.client.Get(ctx, EvaluationContextKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.EvaluationContext{}, ErrEvaluationContextNotFound
		}
		return models.EvaluationContext{}, fmt.Errorf("%w: read evaluation context: %w", ErrCache, err)
	}

	var evaluation models.EvaluationContext
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return models.EvaluationContext{}, fmt.Errorf("%w: decode evaluation context: %w", ErrCache, err)
	}
	return evaluation, nil
}

func (r *evaluationContextRepository) Delete(ctx context.Context, userID uint) error {
	if err := r.client.Del(ctx, EvaluationContextKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: clear evaluation context: %w", ErrCache, err)
	}
	return nil
}
