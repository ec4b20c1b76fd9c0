package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/events"
	"github.com/noah-isme/cefr-placement-api/internal/models"
	"github.com/noah-isme/cefr-placement-api/internal/observability"
	"github.com/noah-isme/cefr-placement-api/internal/prompts"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

// FinalEvaluationService runs the second round and decides the definitive level.
type FinalEvaluationService interface {
	Evaluate(ctx context.Context, payload dto.FinalEvaluationRequest) (dto.FinalEvaluationResponse, error)
}

// FinalEvaluationDeps lists the collaborators of the second round.
type FinalEvaluationDeps struct {
	Contexts         repository.EvaluationContextRepository
	FinalEvaluations repository.FinalEvaluationRepository
	Gateway          llm.Gateway
	Prompts          *prompts.Renderer
	Events           events.Publisher
	Validate         *validator.Validate
	Logger           zerolog.Logger
}

type finalEvaluationService struct {
	contexts  repository.EvaluationContextRepository
	finals    repository.FinalEvaluationRepository
	gateway   llm.Gateway
	prompts   *prompts.Renderer
	events    events.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewFinalEvaluationService constructs the second-round orchestrator.
func NewFinalEvaluationService(deps FinalEvaluationDeps) FinalEvaluationService {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	validate := deps.Validate
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &finalEvaluationService{
		contexts:  deps.Contexts,
		finals:    deps.FinalEvaluations,
		gateway:   deps.Gateway,
		prompts:   deps.Prompts,
		events:    publisher,
		validator: validate,
		logger:    deps.Logger.With().Str("component", "final_evaluation_service").Logger(),
	}
}

func (s *finalEvaluationService) Evaluate(ctx context.Context, payload dto.FinalEvaluationRequest) (dto.FinalEvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FinalEvaluationResponse{}, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "FinalEvaluation.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("user.id", int(payload.UserID)), attribute.Int("answers.count", len(payload.Answers)))

	response, err := s.evaluate(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "final evaluation failed")
		return dto.FinalEvaluationResponse{}, err
	}
	return response, nil
}

func (s *finalEvaluationService) evaluate(ctx context.Context, payload dto.FinalEvaluationRequest) (dto.FinalEvaluationResponse, error) {
	previous, err := s.contexts.Get(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationContextNotFound) {
			return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: no initial evaluation for user %d", ErrEvaluationNotFound, payload.UserID)
		}
		return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: load evaluation context: %w", ErrEvaluation, err)
	}

	answers := make([]string, 0, len(payload.Answers))
	for _, answer := range payload.Answers {
		answers = append(answers, answer.Answer)
	}
	pairs := PairFollowUpAnswers(previous, answers)
	prompt, err := s.prompts.Final(prompts.FinalData{PreviousEvaluation: previous, NewAnswersWithQuestions: pairs})
	if err != nil {
		return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	raw, err := s.gateway.Send(ctx, prompt)
	if err != nil {
		return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: final decision: %w", ErrEvaluation, err)
	}
	decision := ParseFinalDecision(raw)

	plausible := assessment.ValidateLevelProgression(previous.Level, assessment.Level(decision.Level))
	observability.LevelProgression().WithLabelValues(strconv.FormatBool(plausible)).Inc()
	if !plausible {
		s.logger.Warn().
			Uint("user_id", payload.UserID).
			Str("initial_level", string(previous.Level)).
			Str("final_level", decision.Level).
			Msg("final level moved more than one step; keeping model decision")
	}

	record, err := models.NewFinalEvaluation(payload.UserID, string(previous.Level), decision.Level, decision.Reason)
	if err != nil {
		return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}
	if err := s.finals.Create(ctx, &record); err != nil {
		return dto.FinalEvaluationResponse{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	// The final record is stored; a stale context only expires later.
	if err := s.contexts.Delete(ctx, payload.UserID); err != nil {
		s.logger.Error().Err(err).Uint("user_id", payload.UserID).Msg("failed to clear evaluation context")
	}

	observability.EvaluationsCompleted().WithLabelValues("final", record.FinalLevel).Inc()
	event := events.NewEvent(events.TypeFinalCompleted, payload.UserID, record.FinalLevel, map[string]any{
		"initial_level":         record.InitialLevel,
		"final_evaluation_id":   record.ID,
		"progression_plausible": plausible,
	})
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish evaluation event")
	}

	s.logger.Info().
		Uint("user_id", payload.UserID).
		Str("initial_level", record.InitialLevel).
		Str("final_level", record.FinalLevel).
		Msg("final evaluation completed")

	return dto.FinalEvaluationResponse{
		FinalLevel: assessment.Level(record.FinalLevel),
		Reason:     record.Reason,
	}, nil
}

// PairFollowUpAnswers pairs answer i with the i-th follow-up question of the
// first round, labelling any overflow "Question {i+1}".
func PairFollowUpAnswers(previous models.EvaluationContext, answers []string) []prompts.QuestionAnswer {
	pairs := make([]prompts.QuestionAnswer, 0, len(answers))
	for idx, answer := range answers {
		pairs = append(pairs, prompts.QuestionAnswer{
			Question: previous.FollowUpQuestion(idx),
			Answer:   answer,
		})
	}
	return pairs
}
