package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cefr-placement-api/internal/service"
	"github.com/noah-isme/cefr-placement-api/internal/utils"
)

// QuestionHandler lists the stored first-round questions.
type QuestionHandler struct {
	service service.QuestionService
	logger  zerolog.Logger
}

// NewQuestionHandler constructs a question handler.
func NewQuestionHandler(service service.QuestionService, logger zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger.With().Str("component", "question_handler").Logger(),
	}
}

// Register wires question routes.
func (h *QuestionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *QuestionHandler) list(c *fiber.Ctx) error {
	response, err := h.service.List(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list questions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list questions")
	}

	return utils.OK(c, response, "questions retrieved", fiber.Map{"total": len(response.Questions)})
}
