package stats

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input to a derivation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrCategoryInUse is returned when deleting a category that still has clubs.
var ErrCategoryInUse = errors.New("category has clubs attached")
