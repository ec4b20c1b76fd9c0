package assessment

import (
	"errors"
	"fmt"
	"math"
)

const (
	minScore = 0.0
	maxScore = 10.0
)

// ErrScoreOutOfRange indicates a score component outside [0, 10].
var ErrScoreOutOfRange = errors.New("score out of range")

// Scores holds the three competence components graded for an answer.
type Scores struct {
	Grammar    float64 `json:"grammar"`
	Vocabulary float64 `json:"vocabulary"`
	Fluency    float64 `json:"fluency"`
}

// NewScores builds a validated Scores value.
func NewScores(grammar, vocabulary, fluency float64) (Scores, error) {
	scores := Scores{Grammar: grammar, Vocabulary: vocabulary, Fluency: fluency}
	if err := scores.Validate(); err != nil {
		return Scores{}, err
	}
	return scores, nil
}

// Validate checks every component is a finite number within [0, 10].
func (s Scores) Validate() error {
	components := []struct {
		name  string
		value float64
	}{
		{"grammar", s.Grammar},
		{"vocabulary", s.Vocabulary},
		{"fluency", s.Fluency},
	}
	for _, component := range components {
		if math.IsNaN(component.value) || component.value < minScore || component.value > maxScore {
			return fmt.Errorf("%w: %s must be between %.1f and %.1f, got %v", ErrScoreOutOfRange, component.name, minScore, maxScore, component.value)
		}
	}
	return nil
}

// Average returns the mean of the three components rounded to two decimals.
func (s Scores) Average() float64 {
	return round2((s.Grammar + s.Vocabulary + s.Fluency) / 3)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
