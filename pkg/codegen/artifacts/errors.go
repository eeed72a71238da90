package artifacts

import "errors"

var (
	// ErrWriteFailed is returned when a generated file cannot be written
	ErrWriteFailed = errors.New("write failed")

	// ErrRemoveFailed is returned when a generated path cannot be removed
	ErrRemoveFailed = errors.New("remove failed")

	// ErrEmptyPath is returned when an artifact path is empty
	ErrEmptyPath = errors.New("artifact path is empty")
)
