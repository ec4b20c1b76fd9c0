package assessment

// Feedback is the graded result for a single answer.
type Feedback struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	EstimatedLevel Level    `json:"estimated_level"`
	Scores         Scores   `json:"scores"`
	Mistakes       []string `json:"mistakes"`
	Suggestions    []string `json:"suggestions"`
}

// FeedbackLevels extracts the estimated level of each feedback entry, in order.
func FeedbackLevels(feedback []Feedback) []Level {
	levels := make([]Level, 0, len(feedback))
	for _, item := range feedback {
		levels = append(levels, item.EstimatedLevel)
	}
	return levels
}

// FeedbackScores extracts the scores of each feedback entry, in order.
func FeedbackScores(feedback []Feedback) []Scores {
	scores := make([]Scores, 0, len(feedback))
	for _, item := range feedback {
		scores = append(scores, item.Scores)
	}
	return scores
}
