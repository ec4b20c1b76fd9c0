package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
)

// Evaluation is the durable record of the feedback for one first-round answer.
type Evaluation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Question       string         `gorm:"type:text;not null" json:"question"`
	Answer         string         `gorm:"type:text;not null" json:"answer"`
	EstimatedLevel string         `gorm:"size:10;not null;index" json:"estimated_level"`
	Grammar        float64        `gorm:"not null" json:"grammar"`
	Vocabulary     float64        `gorm:"not null" json:"vocabulary"`
	Fluency        float64        `gorm:"not null" json:"fluency"`
	Mistakes       datatypes.JSON `json:"mistakes"`
	Suggestions    datatypes.JSON `json:"suggestions"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

// NewEvaluation converts graded feedback into a persistable record.
func NewEvaluation(userID uint, feedback assessment.Feedback) (Evaluation, error) {
	mistakes, err := marshalList(feedback.Mistakes)
	if err != nil {
		return Evaluation{}, fmt.Errorf("encode mistakes: %w", err)
	}
	suggestions, err := marshalList(feedback.Suggestions)
	if err != nil {
		return Evaluation{}, fmt.Errorf("encode suggestions: %w", err)
	}

	return Evaluation{
		UserID:         userID,
		Question:       feedback.Question,
		Answer:         feedback.Answer,
		EstimatedLevel: string(feedback.EstimatedLevel),
		Grammar:        feedback.Scores.Grammar,
		Vocabulary:     feedback.Scores.Vocabulary,
		Fluency:        feedback.Scores.Fluency,
		Mistakes:       mistakes,
		Suggestions:    suggestions,
	}, nil
}

// MistakeList decodes the stored mistakes.
func (e Evaluation) MistakeList() []string {
	return unmarshalList(e.Mistakes)
}

// SuggestionList decodes the stored suggestions.
func (e Evaluation) SuggestionList() []string {
	return unmarshalList(e.Suggestions)
}

func marshalList(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(payload), nil
}

func unmarshalList(raw datatypes.JSON) []string {
	items := []string{}
	if len(raw) == 0 {
		return items
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	return items
}
