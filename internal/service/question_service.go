package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
)

// QuestionListCacheKey holds the cached first-round question list.
const QuestionListCacheKey = "questions:all"

// QuestionService lists the first-round placement questions.
type QuestionService interface {
	List(ctx context.Context) (dto.QuestionListResponse, error)
}

type questionService struct {
	questions repository.QuestionRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewQuestionService constructs a question service. A nil cache disables caching.
func NewQuestionService(questions repository.QuestionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) QuestionService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &questionService{
		questions: questions,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) List(ctx context.Context) (dto.QuestionListResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, QuestionListCacheKey).Result(); err == nil {
			var response dto.QuestionListResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Msg("question list cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read question list cache")
		}
	}

	questions, err := s.questions.FindAll(ctx)
	if err != nil {
		return dto.QuestionListResponse{}, err
	}
	response := dto.NewQuestionListResponse(questions)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, QuestionListCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store question list cache")
			}
		}
	}

	return response, nil
}
