package models

import (
	"fmt"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
)

// EvaluationContext is the outcome of the first round, kept between rounds so the
// final round can be reconciled against it.
type EvaluationContext struct {
	Level         assessment.Level      `json:"level"`
	Scores        assessment.Scores     `json:"scores"`
	Reason        string                `json:"reason"`
	Feedback      []assessment.Feedback `json:"feedback"`
	NextQuestions []string              `json:"next_questions"`
}

// FollowUpQuestion returns the stored follow-up question for position idx, or the
// placeholder "Question {idx+1}" when the context holds fewer questions.
func (c EvaluationContext) FollowUpQuestion(idx int) string {
	if idx >= 0 && idx < len(c.NextQuestions) {
		return c.NextQuestions[idx]
	}
	return fmt.Sprintf("Question %d", idx+1)
}
