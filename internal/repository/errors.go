package repository

import "errors"

// Common repository errors
var (
	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrCategoryNotFound is returned when a category is not found
	ErrCategoryNotFound = errors.New("category not found")

	// ErrDuplicateOccurrence is returned when an insert violates the
	// (series_id, start_date) uniqueness invariant. Callers treat it as a
	// lost race, not a failure.
	ErrDuplicateOccurrence = errors.New("occurrence already exists for series and date")
)
