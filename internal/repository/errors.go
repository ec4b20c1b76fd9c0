package repository

import "errors"

var (
	// ErrRepository wraps failures from the relational store.
	ErrRepository = errors.New("repository operation failed")
	// ErrCache wraps failures from the evaluation context cache.
	ErrCache = errors.New("cache operation failed")
	// ErrEvaluationContextNotFound indicates no live context exists for the user.
	ErrEvaluationContextNotFound = errors.New("evaluation context not found")
)
