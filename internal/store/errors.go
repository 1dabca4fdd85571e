package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a task id does not exist for the given owner.
// Mutating operations returning ErrNotFound are guaranteed to have changed
// nothing.
var ErrNotFound = errors.New("task not found")

// ErrSessionExists is returned when an evening session already exists for the
// user and calendar date, whether active or completed.
var ErrSessionExists = errors.New("evening session already exists for this date")

// ErrNoActiveTasks is returned when an evening session is requested but the
// user has no pending or in-progress tasks to review.
var ErrNoActiveTasks = errors.New("no active tasks to review")

// ValidationError marks a missing or invalid required field. It is returned
// as a value, never raised as a panic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
