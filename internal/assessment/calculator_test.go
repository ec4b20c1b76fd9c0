package assessment

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateOverallLevel(t *testing.T) {
	tests := []struct {
		name   string
		levels []Level
		want   Level
	}{
		{"empty input defaults to A1", nil, A1},
		{"all invalid defaults to A1", []Level{"X9", "", "b2"}, A1},
		{"single level", []Level{B2}, B2},
		{"majority wins", []Level{A2, B1, B1, C1}, B1},
		{"tie keeps first encountered", []Level{B2, A2, A2, B2}, B2},
		{"tie keeps first encountered reversed", []Level{A2, B2, B2, A2}, A2},
		{"invalid entries ignored", []Level{"Z1", C1, "Z1", "Z1"}, C1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CalculateOverallLevel(tt.levels))
		})
	}
}

func TestCalculateOverallLevelReturnsMaximalCountMember(t *testing.T) {
	inputs := [][]Level{
		{A1, A1, C2},
		{C2, C1, C1, C2, B1},
		{B1, B2, C1, C2, A2, A1},
	}

	for _, levels := range inputs {
		got := CalculateOverallLevel(levels)

		counts := map[Level]int{}
		maxCount := 0
		for _, level := range levels {
			counts[level]++
			if counts[level] > maxCount {
				maxCount = counts[level]
			}
		}
		require.Contains(t, levels, got)
		require.Equal(t, maxCount, counts[got])
	}
}

func TestCalculateAverageScores(t *testing.T) {
	require.Equal(t, Scores{}, CalculateAverageScores(nil))

	scores := []Scores{
		{Grammar: 5, Vocabulary: 6, Fluency: 5},
		{Grammar: 7, Vocabulary: 6.5, Fluency: 8},
		{Grammar: 6, Vocabulary: 9, Fluency: 4.25},
	}
	got := CalculateAverageScores(scores)

	mean := func(pick func(Scores) float64) float64 {
		total := 0.0
		for _, s := range scores {
			total += pick(s)
		}
		return math.Round(total/float64(len(scores))*100) / 100
	}

	require.Equal(t, mean(func(s Scores) float64 { return s.Grammar }), got.Grammar)
	require.Equal(t, mean(func(s Scores) float64 { return s.Vocabulary }), got.Vocabulary)
	require.Equal(t, mean(func(s Scores) float64 { return s.Fluency }), got.Fluency)
	require.Equal(t, 7.17, got.Vocabulary)
}

func TestValidateLevelProgression(t *testing.T) {
	for _, level := range Levels() {
		require.True(t, ValidateLevelProgression(level, level), "level %s", level)
	}

	require.True(t, ValidateLevelProgression(B1, B2))
	require.True(t, ValidateLevelProgression(B2, B1))
	require.False(t, ValidateLevelProgression(A1, C2))
	require.False(t, ValidateLevelProgression(A2, B2))
	require.False(t, ValidateLevelProgression("X9", A1))
	require.False(t, ValidateLevelProgression(A1, ""))
}

func TestSuggestNextLevel(t *testing.T) {
	require.Equal(t, A2, SuggestNextLevel(A1))
	require.Equal(t, C1, SuggestNextLevel(B2))
	require.Equal(t, C2, SuggestNextLevel(C2))
	require.Equal(t, A1, SuggestNextLevel("Q7"))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" B1\n")
	require.NoError(t, err)
	require.Equal(t, B1, level)

	_, err = ParseLevel("X9")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidLevel))

	_, err = ParseLevel("b1")
	require.ErrorIs(t, err, ErrInvalidLevel)
}

func TestNewScores(t *testing.T) {
	scores, err := NewScores(5, 6, 5)
	require.NoError(t, err)
	require.Equal(t, 5.33, scores.Average())

	_, err = NewScores(11, 5, 5)
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = NewScores(5, -0.5, 5)
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = NewScores(5, 5, math.NaN())
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = NewScores(0, 10, 10)
	require.NoError(t, err)
}

func TestFeedbackExtraction(t *testing.T) {
	feedback := []Feedback{
		{EstimatedLevel: A2, Scores: Scores{Grammar: 5, Vocabulary: 6, Fluency: 5}},
		{EstimatedLevel: B1, Scores: Scores{Grammar: 7, Vocabulary: 7, Fluency: 6}},
	}

	require.Equal(t, []Level{A2, B1}, FeedbackLevels(feedback))
	require.Equal(t, []Scores{feedback[0].Scores, feedback[1].Scores}, FeedbackScores(feedback))
}
