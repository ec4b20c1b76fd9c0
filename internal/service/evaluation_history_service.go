package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
)

// EvaluationHistoryService exposes what has been stored for a user.
type EvaluationHistoryService interface {
	LatestFinal(ctx context.Context, userID uint) (dto.FinalEvaluationRecordResponse, error)
	History(ctx context.Context, userID uint) (dto.EvaluationHistoryResponse, error)
}

type evaluationHistoryService struct {
	evaluations repository.EvaluationRepository
	finals      repository.FinalEvaluationRepository
	logger      zerolog.Logger
}

// NewEvaluationHistoryService constructs the read-only history service.
func NewEvaluationHistoryService(evaluations repository.EvaluationRepository, finals repository.FinalEvaluationRepository, logger zerolog.Logger) EvaluationHistoryService {
	return &evaluationHistoryService{
		evaluations: evaluations,
		finals:      finals,
		logger:      logger.With().Str("component", "evaluation_history_service").Logger(),
	}
}

func (s *evaluationHistoryService) LatestFinal(ctx context.Context, userID uint) (dto.FinalEvaluationRecordResponse, error) {
	record, err := s.finals.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FinalEvaluationRecordResponse{}, fmt.Errorf("%w: user %d", ErrFinalEvaluationNotFound, userID)
		}
		return dto.FinalEvaluationRecordResponse{}, fmt.Errorf("%w: latest final evaluation: %w", repository.ErrRepository, err)
	}
	return dto.NewFinalEvaluationRecordResponse(record), nil
}

func (s *evaluationHistoryService) History(ctx context.Context, userID uint) (dto.EvaluationHistoryResponse, error) {
	evaluations, err := s.evaluations.ListByUser(ctx, userID)
	if err != nil {
		return dto.EvaluationHistoryResponse{}, err
	}
	finals, err := s.finals.ListByUser(ctx, userID)
	if err != nil {
		return dto.EvaluationHistoryResponse{}, err
	}

	response := dto.EvaluationHistoryResponse{
		UserID:           userID,
		Evaluations:      make([]dto.EvaluationRecordResponse, 0, len(evaluations)),
		FinalEvaluations: make([]dto.FinalEvaluationRecordResponse, 0, len(finals)),
	}
	for _, evaluation := range evaluations {
		response.Evaluations = append(response.Evaluations, dto.NewEvaluationRecordResponse(evaluation))
	}
	for _, final := range finals {
		response.FinalEvaluations = append(response.FinalEvaluations, dto.NewFinalEvaluationRecordResponse(final))
	}

	s.logger.Debug().Uint("user_id", userID).Int("evaluations", len(evaluations)).Int("final_evaluations", len(finals)).Msg("history loaded")
	return response, nil
}
