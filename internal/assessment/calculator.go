// Package assessment holds the CEFR value objects and the pure aggregation
// rules applied to per-question feedback.
package assessment

// CalculateOverallLevel returns the most frequent valid level. When several
// levels share the highest count, the one that appeared first in the input wins.
// Empty input, or input without any valid level, yields A1.
func CalculateOverallLevel(levels []Level) Level {
	counts := make(map[Level]int, len(orderedLevels))
	order := make([]Level, 0, len(orderedLevels))
	for _, level := range levels {
		if !level.Valid() {
			continue
		}
		if _, seen := counts[level]; !seen {
			order = append(order, level)
		}
		counts[level]++
	}

	if len(order) == 0 {
		return A1
	}

	best := order[0]
	for _, level := range order[1:] {
		if counts[level] > counts[best] {
			best = level
		}
	}
	return best
}

// CalculateAverageScores returns the per-component mean rounded to two decimals.
func CalculateAverageScores(scores []Scores) Scores {
	if len(scores) == 0 {
		return Scores{}
	}

	var total Scores
	for _, s := range scores {
		total.Grammar += s.Grammar
		total.Vocabulary += s.Vocabulary
		total.Fluency += s.Fluency
	}

	count := float64(len(scores))
	return Scores{
		Grammar:    round2(total.Grammar / count),
		Vocabulary: round2(total.Vocabulary / count),
		Fluency:    round2(total.Fluency / count),
	}
}

// ValidateLevelProgression reports whether moving from previous to current stays
// within one level in either direction. Unknown levels never pass.
func ValidateLevelProgression(previous, current Level) bool {
	if !previous.Valid() || !current.Valid() {
		return false
	}
	distance := current.Rank() - previous.Rank()
	if distance < 0 {
		distance = -distance
	}
	return distance <= 1
}

// SuggestNextLevel returns the level one step above current, staying at C2 once
// reached. Unknown input falls back to A1.
func SuggestNextLevel(current Level) Level {
	rank := current.Rank()
	if rank < 0 {
		return A1
	}
	if rank < len(orderedLevels)-1 {
		return orderedLevels[rank+1]
	}
	return current
}
