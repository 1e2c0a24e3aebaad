package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness conflict.
	ErrConflict = errors.New("already exists")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
)
