package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a CEFR proficiency level.
type Level string

// CEFR levels ordered by proficiency.
const (
	A1 Level = "A1"
	A2 Level = "A2"
	B1 Level = "B1"
	B2 Level = "B2"
	C1 Level = "C1"
	C2 Level = "C2"
)

// ErrInvalidLevel indicates a value outside the six CEFR codes.
var ErrInvalidLevel = errors.New("invalid cefr level")

var orderedLevels = []Level{A1, A2, B1, B2, C1, C2}

// Levels returns every level from lowest to highest.
func Levels() []Level {
	levels := make([]Level, len(orderedLevels))
	copy(levels, orderedLevels)
	return levels
}

// ParseLevel converts a raw code into a Level. Surrounding whitespace is ignored,
// anything else must match one of the six codes exactly.
func ParseLevel(value string) (Level, error) {
	level := Level(strings.TrimSpace(value))
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q must be one of %s", ErrInvalidLevel, value, joinLevels())
	}
	return level, nil
}

// Rank returns the zero-based position of the level, or -1 when the level is unknown.
func (l Level) Rank() int {
	for idx, level := range orderedLevels {
		if level == l {
			return idx
		}
	}
	return -1
}

// Valid reports whether the level is one of the CEFR codes.
func (l Level) Valid() bool {
	return l.Rank() >= 0
}

func (l Level) String() string {
	return string(l)
}

func joinLevels() string {
	codes := make([]string, 0, len(orderedLevels))
	for _, level := range orderedLevels {
		codes = append(codes, string(level))
	}
	return strings.Join(codes, ", ")
}
