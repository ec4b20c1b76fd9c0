package dto

import (
	"time"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
	"github.com/noah-isme/cefr-placement-api/internal/models"
)

// InitialAnswer is one first-round answer to a stored question.
type InitialAnswer struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"required,max=5000"`
}

// InitialEvaluationRequest is the payload of the first round.
type InitialEvaluationRequest struct {
	UserID  uint            `json:"user_id" validate:"required,gt=0"`
	Answers []InitialAnswer `json:"answers" validate:"required,min=1,dive"`
}

// InitialEvaluationResponse is returned by the first round and stored verbatim as
// the evaluation context of the user.
type InitialEvaluationResponse = models.EvaluationContext

// FinalAnswer is one second-round answer; it is paired by position with the
// follow-up questions of the first round.
type FinalAnswer struct {
	Answer string `json:"answer" validate:"required,max=5000"`
}

// FinalEvaluationRequest is the payload of the second round.
type FinalEvaluationRequest struct {
	UserID  uint          `json:"user_id" validate:"required,gt=0"`
	Answers []FinalAnswer `json:"answers" validate:"required,min=1,dive"`
}

// FinalEvaluationResponse carries the definitive level.
type FinalEvaluationResponse struct {
	FinalLevel assessment.Level `json:"final_level"`
	Reason     string           `json:"reason"`
}

// FinalEvaluationRecordResponse exposes a stored final evaluation.
type FinalEvaluationRecordResponse struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	InitialLevel string    `json:"initial_level,omitempty"`
	FinalLevel   string    `json:"final_level"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewFinalEvaluationRecordResponse converts a model into its API representation.
func NewFinalEvaluationRecordResponse(evaluation models.FinalEvaluation) FinalEvaluationRecordResponse {
	return FinalEvaluationRecordResponse{
		ID:           evaluation.ID,
		UserID:       evaluation.UserID,
		InitialLevel: evaluation.InitialLevel,
		FinalLevel:   evaluation.FinalLevel,
		Reason:       evaluation.Reason,
		CreatedAt:    evaluation.CreatedAt,
	}
}

// EvaluationRecordResponse exposes the stored feedback of one first-round answer.
type EvaluationRecordResponse struct {
	ID             uint              `json:"id"`
	Question       string            `json:"question"`
	Answer         string            `json:"answer"`
	EstimatedLevel string            `json:"estimated_level"`
	Scores         assessment.Scores `json:"scores"`
	Mistakes       []string          `json:"mistakes"`
	Suggestions    []string          `json:"suggestions"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewEvaluationRecordResponse converts a model into its API representation.
func NewEvaluationRecordResponse(evaluation models.Evaluation) EvaluationRecordResponse {
	return EvaluationRecordResponse{
		ID:             evaluation.ID,
		Question:       evaluation.Question,
		Answer:         evaluation.Answer,
		EstimatedLevel: evaluation.EstimatedLevel,
		Scores: assessment.Scores{
			Grammar:    evaluation.Grammar,
			Vocabulary: evaluation.Vocabulary,
			Fluency:    evaluation.Fluency,
		},
		Mistakes:    evaluation.MistakeList(),
		Suggestions: evaluation.SuggestionList(),
		CreatedAt:   evaluation.CreatedAt,
	}
}

// EvaluationHistoryResponse lists everything stored for a user, newest first.
type EvaluationHistoryResponse struct {
	UserID           uint                            `json:"user_id"`
	Evaluations      []EvaluationRecordResponse      `json:"evaluations"`
	FinalEvaluations []FinalEvaluationRecordResponse `json:"final_evaluations"`
}
