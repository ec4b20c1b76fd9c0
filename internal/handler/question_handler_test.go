package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cefr-placement-api/internal/config"
	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/handler"
)

type stubQuestionService struct {
	response dto.QuestionListResponse
	err      error
}

func (s stubQuestionService) List(context.Context) (dto.QuestionListResponse, error) {
	return s.response, s.err
}

func TestQuestionHandler_List(t *testing.T) {
	svc := stubQuestionService{response: dto.QuestionListResponse{Questions: []dto.QuestionResponse{
		{ID: 1, Question: "What did you do yesterday?"},
		{ID: 2, Question: "Describe your hometown."},
	}}}
	app := fiber.New()
	handler.NewQuestionHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/questions"))

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/questions", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                     `json:"success"`
		Data    dto.QuestionListResponse `json:"data"`
		Meta    map[string]int           `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, svc.response, body.Data)
	require.Equal(t, 2, body.Meta["total"])
}

func TestQuestionHandler_ListFailure(t *testing.T) {
	app := fiber.New()
	handler.NewQuestionHandler(stubQuestionService{err: errors.New("db down")}, zerolog.Nop()).Register(app.Group("/api/v1/questions"))

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/questions", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{AppName: "CEFR Placement API", AppEnv: "test", LLMProvider: "openai", LLMModel: "gpt-4o-mini"}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg))

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, cfg.AppName, body.Data.Service)
	require.Equal(t, "openai", body.Data.LLMProvider)
	require.WithinDuration(t, time.Now().UTC(), body.Data.Timestamp, 2*time.Second)
}
