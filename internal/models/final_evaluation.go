package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
)

// ErrInvalidUser indicates a final evaluation without a positive user id.
var ErrInvalidUser = errors.New("user id must be positive")

// FinalEvaluation is the definitive level decided at the end of the second round.
// Records are append-only.
type FinalEvaluation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	InitialLevel string    `gorm:"size:10" json:"initial_level,omitempty"`
	FinalLevel   string    `gorm:"size:10;not null" json:"final_level"`
	Reason       string    `gorm:"type:text" json:"reason"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewFinalEvaluation validates the levels and builds a record. initialLevel may be
// empty; finalLevel must be one of the six CEFR codes.
func NewFinalEvaluation(userID uint, initialLevel, finalLevel string, reason string) (FinalEvaluation, error) {
	if userID == 0 {
		return FinalEvaluation{}, ErrInvalidUser
	}

	final, err := assessment.ParseLevel(finalLevel)
	if err != nil {
		return FinalEvaluation{}, fmt.Errorf("invalid final level: %w", err)
	}

	initial := strings.TrimSpace(initialLevel)
	if initial != "" {
		parsed, err := assessment.ParseLevel(initial)
		if err != nil {
			return FinalEvaluation{}, fmt.Errorf("invalid initial level: %w", err)
		}
		initial = string(parsed)
	}

	return FinalEvaluation{
		UserID:       userID,
		InitialLevel: initial,
		FinalLevel:   string(final),
		Reason:       reason,
	}, nil
}
