package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEvaluation marks a business-rule failure of an evaluation round.
	ErrEvaluation = errors.New("evaluation failed")
	// ErrEvaluationNotFound indicates the final round found no first-round context.
	ErrEvaluationNotFound = fmt.Errorf("%w: evaluation not found", ErrEvaluation)
	// ErrFinalEvaluationNotFound indicates the user has no stored final level.
	ErrFinalEvaluationNotFound = fmt.Errorf("%w: final evaluation not found", ErrEvaluation)
)
