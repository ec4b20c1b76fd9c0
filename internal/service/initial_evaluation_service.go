package service

import (
	"context"
	"fmt"
	"strings"

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

const (
	tracerName    = "github.com/noah-isme/cefr-placement-api/internal/service"
	defaultReason = "Based on overall performance"
)

// InitialEvaluationService runs the first round of the placement test.
type InitialEvaluationService interface {
	Evaluate(ctx context.Context, payload dto.InitialEvaluationRequest) (dto.InitialEvaluationResponse, error)
}

// InitialEvaluationDeps lists the collaborators of the first round.
type InitialEvaluationDeps struct {
	Questions   repository.QuestionRepository
	Evaluations repository.EvaluationRepository
	Contexts    repository.EvaluationContextRepository
	Gateway     llm.Gateway
	Responses   *ResponseValidator
	Prompts     *prompts.Renderer
	Events      events.Publisher
	Validate    *validator.Validate
	Logger      zerolog.Logger
}

// RecordOutcome reports whether the feedback at Index was stored.
type RecordOutcome struct {
	Index        int
	EvaluationID uint
	Err          error
}

type initialEvaluationService struct {
	questions   repository.QuestionRepository
	evaluations repository.EvaluationRepository
	contexts    repository.EvaluationContextRepository
	gateway     llm.Gateway
	responses   *ResponseValidator
	prompts     *prompts.Renderer
	events      events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewInitialEvaluationService constructs the first-round orchestrator.
func NewInitialEvaluationService(deps InitialEvaluationDeps) InitialEvaluationService {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	validate := deps.Validate
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &initialEvaluationService{
		questions:   deps.Questions,
		evaluations: deps.Evaluations,
		contexts:    deps.Contexts,
		gateway:     deps.Gateway,
		responses:   deps.Responses,
		prompts:     deps.Prompts,
		events:      publisher,
		validator:   validate,
		logger:      deps.Logger.With().Str("component", "initial_evaluation_service").Logger(),
	}
}

func (s *initialEvaluationService) Evaluate(ctx context.Context, payload dto.InitialEvaluationRequest) (dto.InitialEvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.InitialEvaluationResponse{}, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "InitialEvaluation.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("user.id", int(payload.UserID)), attribute.Int("answers.count", len(payload.Answers)))

	response, err := s.grade(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initial evaluation failed")
		return dto.InitialEvaluationResponse{}, err
	}

	if err := s.contexts.Save(ctx, payload.UserID, response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "context not stored")
		return dto.InitialEvaluationResponse{}, err
	}

	outcomes := s.persistFeedback(ctx, payload.UserID, response.Feedback)
	stored := 0
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			stored++
		}
	}

	next := assessment.SuggestNextLevel(response.Level)
	observability.EvaluationsCompleted().WithLabelValues("initial", string(response.Level)).Inc()
	s.publish(ctx, events.NewEvent(events.TypeInitialCompleted, payload.UserID, string(response.Level), map[string]any{
		"answers":          len(payload.Answers),
		"records_stored":   stored,
		"next_level_focus": string(next),
	}))

	s.logger.Info().
		Uint("user_id", payload.UserID).
		Str("level", string(response.Level)).
		Str("next_level_focus", string(next)).
		Int("records_stored", stored).
		Int("records_failed", len(outcomes)-stored).
		Msg("initial evaluation completed")

	return response, nil
}

// grade resolves the questions, asks the model and aggregates its feedback.
// Every failure is wrapped in ErrEvaluation with its cause kept in the chain.
func (s *initialEvaluationService) grade(ctx context.Context, payload dto.InitialEvaluationRequest) (dto.InitialEvaluationResponse, error) {
	ids := make([]uint, 0, len(payload.Answers))
	for _, answer := range payload.Answers {
		ids = append(ids, answer.QuestionID)
	}

	found, err := s.questions.FindByIDs(ctx, ids)
	if err != nil {
		return dto.InitialEvaluationResponse{}, fmt.Errorf("%w: load questions: %w", ErrEvaluation, err)
	}
	if len(found) != len(ids) {
		return dto.InitialEvaluationResponse{}, fmt.Errorf("%w: some questions not found", ErrEvaluation)
	}

	questions := make(map[uint]string, len(found))
	for _, question := range found {
		questions[question.ID] = question.Question
	}
	answers := make(map[uint]string, len(payload.Answers))
	for _, answer := range payload.Answers {
		answers[answer.QuestionID] = answer.Answer
	}

	prompt, err := s.prompts.Initial(prompts.InitialData{Questions: questions, Answers: answers})
	if err != nil {
		return dto.InitialEvaluationResponse{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	raw, err := s.gateway.GenerateStructured(ctx, prompt, prompts.InitialSchemaHint)
	if err != nil {
		return dto.InitialEvaluationResponse{}, fmt.Errorf("%w: grade answers: %w", ErrEvaluation, err)
	}

	normalized, err := s.responses.Normalize(raw)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", payload.UserID).Msg("model returned an unusable evaluation")
		return dto.InitialEvaluationResponse{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	reason := strings.TrimSpace(normalized.Reason)
	if reason == "" {
		reason = defaultReason
	}

	return models.EvaluationContext{
		Level:         assessment.CalculateOverallLevel(assessment.FeedbackLevels(normalized.Feedback)),
		Scores:        assessment.CalculateAverageScores(assessment.FeedbackScores(normalized.Feedback)),
		Reason:        reason,
		Feedback:      normalized.Feedback,
		NextQuestions: normalized.NextQuestions,
	}, nil
}

// persistFeedback stores one record per feedback entry. A failed save is logged
// and reported in its outcome; the remaining entries are still attempted.
func (s *initialEvaluationService) persistFeedback(ctx context.Context, userID uint, feedback []assessment.Feedback) []RecordOutcome {
	outcomes := make([]RecordOutcome, 0, len(feedback))
	for idx, item := range feedback {
		outcome := RecordOutcome{Index: idx}

		record, err := models.NewEvaluation(userID, item)
		if err == nil {
			err = s.evaluations.Create(ctx, &record)
		}
		if err != nil {
			outcome.Err = err
			observability.EvaluationRecordFailures().Inc()
			s.logger.Error().Err(err).Uint("user_id", userID).Int("index", idx).Msg("failed to store evaluation record")
		} else {
			outcome.EvaluationID = record.ID
		}

		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *initialEvaluationService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish evaluation event")
	}
}
