package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
	"github.com/noah-isme/cefr-placement-api/internal/service"
	"github.com/noah-isme/cefr-placement-api/internal/utils"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

// EvaluationHandler exposes both placement rounds and the stored results.
type EvaluationHandler struct {
	initial service.InitialEvaluationService
	final   service.FinalEvaluationService
	history service.EvaluationHistoryService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(initial service.InitialEvaluationService, final service.FinalEvaluationService, history service.EvaluationHistoryService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		initial: initial,
		final:   final,
		history: history,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires evaluation routes. Extra handlers, such as a rate limiter, run
// before the two model-backed rounds.
func (h *EvaluationHandler) Register(router fiber.Router, roundMiddleware ...fiber.Handler) {
	initial := append(append([]fiber.Handler{}, roundMiddleware...), h.evaluateInitial)
	final := append(append([]fiber.Handler{}, roundMiddleware...), h.evaluateFinal)

	router.Post("/initial", initial...)
	router.Post("/final", final...)
	router.Get("/users/:user_id/final", h.latestFinal)
	router.Get("/users/:user_id/history", h.userHistory)
}

func (h *EvaluationHandler) evaluateInitial(c *fiber.Ctx) error {
	var payload dto.InitialEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if !ownsUser(c, payload.UserID) {
		return sendForbiddenUser(c)
	}

	response, err := h.initial.Evaluate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "initial evaluation completed", response)
}

func (h *EvaluationHandler) evaluateFinal(c *fiber.Ctx) error {
	var payload dto.FinalEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if !ownsUser(c, payload.UserID) {
		return sendForbiddenUser(c)
	}

	response, err := h.final.Evaluate(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "final evaluation completed", response)
}

func (h *EvaluationHandler) latestFinal(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "user_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if !ownsUser(c, userID) {
		return sendForbiddenUser(c)
	}

	response, err := h.history.LatestFinal(c.UserContext(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "final evaluation retrieved", response)
}

func (h *EvaluationHandler) userHistory(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "user_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if !ownsUser(c, userID) {
		return sendForbiddenUser(c)
	}

	response, err := h.history.History(c.UserContext(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, response, "evaluation history retrieved", fiber.Map{
		"evaluations":       len(response.Evaluations),
		"final_evaluations": len(response.FinalEvaluations),
	})
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	logger := requestLogger(h.logger, c)

	var invalid *llm.InvalidResponseError
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound), errors.Is(err, service.ErrFinalEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		logger.Warn().Err(err).Strs("keys", invalid.Keys).Msg("model returned malformed output")
		return utils.SendError(c, fiber.StatusBadGateway, "evaluation model returned an invalid response")
	case errors.Is(err, llm.ErrLLM):
		logger.Error().Err(err).Msg("evaluation model unavailable")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "evaluation model unavailable")
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, repository.ErrRepository), errors.Is(err, repository.ErrCache):
		logger.Error().Err(err).Msg("evaluation storage failure")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process evaluation")
	case errors.Is(err, service.ErrEvaluation):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("unexpected evaluation failure")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process evaluation")
	}
}
