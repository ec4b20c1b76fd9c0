package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
	"github.com/noah-isme/cefr-placement-api/internal/dto"
	"github.com/noah-isme/cefr-placement-api/internal/handler"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
	"github.com/noah-isme/cefr-placement-api/internal/service"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

type mockInitialService struct {
	calls    int
	last     dto.InitialEvaluationRequest
	response dto.InitialEvaluationResponse
	err      error
}

func (m *mockInitialService) Evaluate(_ context.Context, payload dto.InitialEvaluationRequest) (dto.InitialEvaluationResponse, error) {
	m.calls++
	m.last = payload
	return m.response, m.err
}

type mockFinalService struct {
	calls    int
	response dto.FinalEvaluationResponse
	err      error
}

func (m *mockFinalService) Evaluate(context.Context, dto.FinalEvaluationRequest) (dto.FinalEvaluationResponse, error) {
	m.calls++
	return m.response, m.err
}

type mockHistoryService struct {
	latest  dto.FinalEvaluationRecordResponse
	history dto.EvaluationHistoryResponse
	err     error
}

func (m *mockHistoryService) LatestFinal(_ context.Context, userID uint) (dto.FinalEvaluationRecordResponse, error) {
	if m.err != nil {
		return dto.FinalEvaluationRecordResponse{}, m.err
	}
	m.latest.UserID = userID
	return m.latest, nil
}

func (m *mockHistoryService) History(_ context.Context, userID uint) (dto.EvaluationHistoryResponse, error) {
	if m.err != nil {
		return dto.EvaluationHistoryResponse{}, m.err
	}
	m.history.UserID = userID
	return m.history, nil
}

func newEvaluationApp(initial service.InitialEvaluationService, final service.FinalEvaluationService, history service.EvaluationHistoryService, middleware ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{}, middleware...)
	group := app.Group("/api/v1/evaluation", handlers...)
	handler.NewEvaluationHandler(initial, final, history, zerolog.Nop()).Register(group)
	return app
}

func validInitialPayload() dto.InitialEvaluationRequest {
	return dto.InitialEvaluationRequest{
		UserID:  7,
		Answers: []dto.InitialAnswer{{QuestionID: 1, Answer: "I go to school yesterday"}},
	}
}

func TestEvaluationHandler_InitialSuccess(t *testing.T) {
	initial := &mockInitialService{response: dto.InitialEvaluationResponse{
		Level:         assessment.A2,
		Scores:        assessment.Scores{Grammar: 5, Vocabulary: 6, Fluency: 5},
		Reason:        "Basic past events",
		Feedback:      []assessment.Feedback{},
		NextQuestions: []string{"Q1"},
	}}
	app := newEvaluationApp(initial, &mockFinalService{}, &mockHistoryService{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/evaluation/initial", validInitialPayload()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                          `json:"success"`
		Data    dto.InitialEvaluationResponse `json:"data"`
		Message string                        `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, assessment.A2, body.Data.Level)
	require.Equal(t, []string{"Q1"}, body.Data.NextQuestions)
	require.Equal(t, uint(7), initial.last.UserID)
}

func TestEvaluationHandler_InvalidBody(t *testing.T) {
	initial := &mockInitialService{}
	app := newEvaluationApp(initial, &mockFinalService{}, &mockHistoryService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluation/initial", strings.NewReader(`{"user_id": 7, "answers": [`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Zero(t, initial.calls)
}

func TestEvaluationHandler_ErrorMapping(t *testing.T) {
	validationErr := validator.New().Struct(dto.InitialEvaluationRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "context missing", err: fmt.Errorf("%w: no initial evaluation for user 7", service.ErrEvaluationNotFound), status: fiber.StatusNotFound},
		{name: "malformed model output", err: fmt.Errorf("%w: %w", service.ErrEvaluation, llm.NewInvalidResponseError("oops", "response is not valid JSON", nil)), status: fiber.StatusBadGateway},
		{name: "model unavailable", err: fmt.Errorf("%w: grade answers: %w", service.ErrEvaluation, fmt.Errorf("%w: connection refused", llm.ErrLLM)), status: fiber.StatusServiceUnavailable},
		{name: "validation", err: validationErr, status: fiber.StatusBadRequest},
		{name: "missing questions", err: fmt.Errorf("%w: some questions not found", service.ErrEvaluation), status: fiber.StatusBadRequest},
		{name: "cache failure", err: fmt.Errorf("%w: connection reset", repository.ErrCache), status: fiber.StatusInternalServerError},
		{name: "unexpected", err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newEvaluationApp(&mockInitialService{err: tc.err}, &mockFinalService{err: tc.err}, &mockHistoryService{})

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/evaluation/initial", validInitialPayload()), -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body envelope
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			require.NotEmpty(t, body.Message)

			finalReq := jsonRequest(t, http.MethodPost, "/api/v1/evaluation/final", dto.FinalEvaluationRequest{
				UserID:  7,
				Answers: []dto.FinalAnswer{{Answer: "Because it was raining"}},
			})
			resp, err = app.Test(finalReq, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestEvaluationHandler_ValidationDetails(t *testing.T) {
	validationErr := validator.New().Struct(dto.InitialEvaluationRequest{})
	app := newEvaluationApp(&mockInitialService{err: validationErr}, &mockFinalService{}, &mockHistoryService{})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/evaluation/initial", validInitialPayload()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Details []handler.FieldError `json:"details"`
	}
	decodeResponse(t, resp, &body)
	require.NotEmpty(t, body.Details)
	require.Equal(t, "UserID", body.Details[0].Field)
	require.Equal(t, "required", body.Details[0].Rule)
}

func TestEvaluationHandler_TokenSubjectMustMatchUser(t *testing.T) {
	initial := &mockInitialService{}
	final := &mockFinalService{}
	history := &mockHistoryService{}
	app := newEvaluationApp(initial, final, history, func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(8))
		return c.Next()
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/evaluation/initial", validInitialPayload()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, initial.calls)

	var body envelope
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Empty(t, body.Data)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/v1/evaluation/final", dto.FinalEvaluationRequest{
		UserID:  7,
		Answers: []dto.FinalAnswer{{Answer: "Because it was raining"}},
	}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, final.calls)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/7/history", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/8/final", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestEvaluationHandler_LatestFinal(t *testing.T) {
	history := &mockHistoryService{latest: dto.FinalEvaluationRecordResponse{ID: 3, FinalLevel: "B2", Reason: "solid"}}
	app := newEvaluationApp(&mockInitialService{}, &mockFinalService{}, history)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/12/final", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.FinalEvaluationRecordResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, uint(12), body.Data.UserID)
	require.Equal(t, "B2", body.Data.FinalLevel)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/abc/final", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	missing := newEvaluationApp(&mockInitialService{}, &mockFinalService{}, &mockHistoryService{err: fmt.Errorf("%w: user 12", service.ErrFinalEvaluationNotFound)})
	resp, err = missing.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/12/final", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluationHandler_HistoryMeta(t *testing.T) {
	history := &mockHistoryService{history: dto.EvaluationHistoryResponse{
		Evaluations:      []dto.EvaluationRecordResponse{{ID: 1}, {ID: 2}},
		FinalEvaluations: []dto.FinalEvaluationRecordResponse{},
	}}
	app := newEvaluationApp(&mockInitialService{}, &mockFinalService{}, history)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/v1/evaluation/users/4/history", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.EvaluationHistoryResponse `json:"data"`
		Meta map[string]int                `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, uint(4), body.Data.UserID)
	require.Equal(t, 2, body.Meta["evaluations"])
	require.Equal(t, 0, body.Meta["final_evaluations"])
}
