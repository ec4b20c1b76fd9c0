package service

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

const flatResponse = `{
  "level": "B1",
  "scores": {"grammar": 6, "vocabulary": 6.5, "fluency": 7},
  "reason": "Clear answers with some tense errors",
  "feedback": [
    {
      "question": "Describe your hometown.",
      "answer": "My town is quiet and have many parks.",
      "estimated_level": "B1",
      "scores": {"grammar": 5.5, "vocabulary": 6.5, "fluency": 7},
      "mistakes": ["have -> has"],
      "suggestions": ["check subject-verb agreement"]
    },
    {
      "question": "What did you do last weekend?",
      "answer": "I visited my grandmother.",
      "estimated_level": "A2",
      "scores": {"grammar": 7, "vocabulary": 5, "fluency": 6},
      "mistakes": [],
      "suggestions": ["add more detail"]
    }
  ],
  "next_questions": ["N1", "N2", "N3", "N4", "N5"]
}`

const nestedResponse = `{
  "evaluation": {
    "level": "B1",
    "scores": {"grammar": 6, "vocabulary": 6.5, "fluency": 7},
    "reason": "Clear answers with some tense errors",
    "feedback": [
      {
        "question": "Describe your hometown.",
        "answer": "My town is quiet and have many parks.",
        "estimated_level": "B1",
        "scores": {"grammar": 5.5, "vocabulary": 6.5, "fluency": 7},
        "mistakes": ["have -> has"],
        "suggestions": ["check subject-verb agreement"]
      },
      {
        "question": "What did you do last weekend?",
        "answer": "I visited my grandmother.",
        "estimated_level": "A2",
        "scores": {"grammar": 7, "vocabulary": 5, "fluency": 6},
        "mistakes": [],
        "suggestions": ["add more detail"]
      }
    ]
  },
  "next_questions": ["N1", "N2", "N3", "N4", "N5"]
}`

func newTestResponseValidator(t *testing.T) *ResponseValidator {
	t.Helper()
	validator, err := NewResponseValidator(nil)
	require.NoError(t, err)
	return validator
}

func TestNormalizeNestedAndFlatAreEquivalent(t *testing.T) {
	validator := newTestResponseValidator(t)

	flat, err := validator.Normalize(flatResponse)
	require.NoError(t, err)
	nested, err := validator.Normalize(nestedResponse)
	require.NoError(t, err)

	if diff := cmp.Diff(flat, nested); diff != "" {
		t.Fatalf("nested and flat responses normalized differently (-flat +nested):\n%s", diff)
	}

	require.Equal(t, assessment.B1, flat.Level)
	require.Len(t, flat.Feedback, 2)
	require.Equal(t, "I visited my grandmother.", flat.Feedback[1].Answer)
	require.Equal(t, assessment.A2, flat.Feedback[1].EstimatedLevel)
	require.Equal(t, []string{}, flat.Feedback[1].Mistakes)
	require.Equal(t, []string{"N1", "N2", "N3", "N4", "N5"}, flat.NextQuestions)
}

func TestNormalizeFlatWithoutOptionalFields(t *testing.T) {
	validator := newTestResponseValidator(t)

	normalized, err := validator.Normalize(`{"level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"feedback":[]}`)
	require.NoError(t, err)
	require.Empty(t, normalized.Feedback)
	require.Equal(t, []string{}, normalized.NextQuestions)
	require.Empty(t, normalized.Reason)
}

func TestNormalizeRejectsMalformedOutput(t *testing.T) {
	validator := newTestResponseValidator(t)

	cases := map[string]string{
		"not json":        "Sure! Here is the evaluation you asked for.",
		"truncated":       `{"level": "B1", "scores": {`,
		"array":           `[{"level": "B1"}]`,
		"trailing text":   `{"level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"feedback":[]} thanks`,
		"missing field":   `{"level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"feedback":[{"question":"q","answer":"a","estimated_level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"mistakes":[]}]}`,
		"wrong type":      `{"level":"A1","scores":{"grammar":"high","vocabulary":1,"fluency":1},"feedback":[]}`,
		"nested missing":  `{"evaluation":{"level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"feedback":[]},"next_questions":[]}`,
		"score above ten": `{"level":"A1","scores":{"grammar":1,"vocabulary":1,"fluency":1},"feedback":[{"question":"q","answer":"a","estimated_level":"A1","scores":{"grammar":11,"vocabulary":1,"fluency":1},"mistakes":[],"suggestions":[]}]}`,
		"negative score":  `{"level":"A1","scores":{"grammar":-1,"vocabulary":1,"fluency":1},"feedback":[]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			normalized, err := validator.Normalize(raw)
			require.Error(t, err)
			require.Empty(t, normalized.Feedback)

			var invalid *llm.InvalidResponseError
			require.True(t, errors.As(err, &invalid))
			require.Equal(t, raw, invalid.Raw)
			require.ErrorIs(t, err, llm.ErrLLM)
		})
	}
}

func TestNormalizeListsUnexpectedKeys(t *testing.T) {
	validator := newTestResponseValidator(t)

	_, err := validator.Normalize(`{"result": "B1", "comment": "ok", "level": "B1"}`)
	require.Error(t, err)

	var invalid *llm.InvalidResponseError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, []string{"comment", "level", "result"}, invalid.Keys)
	require.Contains(t, err.Error(), "comment, level, result")
}

func TestParseFinalDecision(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want FinalDecision
	}{
		{name: "json object", raw: `{"final_level": " B2 ", "reason": "Strong second round"}`, want: FinalDecision{Level: "B2", Reason: "Strong second round"}},
		{name: "json without reason", raw: `{"final_level": "C1"}`, want: FinalDecision{Level: "C1", Reason: DefaultFinalReason}},
		{name: "json with empty reason", raw: `{"final_level": "B1", "reason": ""}`, want: FinalDecision{Level: "B1", Reason: ""}},
		{name: "json with non-string reason", raw: `{"final_level": "B1", "reason": 3}`, want: FinalDecision{Level: "B1", Reason: DefaultFinalReason}},
		{name: "plain level", raw: "  B1\n", want: FinalDecision{Level: "B1", Reason: DefaultFinalReason}},
		{name: "json without level", raw: `{"level": "B1"}`, want: FinalDecision{Level: `{"level": "B1"}`, Reason: DefaultFinalReason}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseFinalDecision(tc.raw))
		})
	}
}
