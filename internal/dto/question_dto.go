package dto

import "github.com/noah-isme/cefr-placement-api/internal/models"

// QuestionResponse represents a placement question.
type QuestionResponse struct {
	ID       uint   `json:"id"`
	Question string `json:"question"`
}

// QuestionListResponse wraps the question list.
type QuestionListResponse struct {
	Questions []QuestionResponse `json:"questions"`
}

// NewQuestionListResponse converts models into the API representation.
func NewQuestionListResponse(questions []models.Question) QuestionListResponse {
	items := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		items = append(items, QuestionResponse{ID: question.ID, Question: question.Question})
	}
	return QuestionListResponse{Questions: items}
}
