package generation

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Callers match them with errors.Is; the specific errors below
// wrap exactly one kind.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrOwnership         = errors.New("ownership check failed")
	ErrConflict          = errors.New("conflict")
	ErrSchedulingFailure = errors.New("scheduling failure")
)

var (
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrImageNotFound       = fmt.Errorf("image upload %w", ErrNotFound)
	ErrJobNotFound         = fmt.Errorf("generation job %w", ErrNotFound)
	ErrHeadshotNotFound    = fmt.Errorf("headshot %w", ErrNotFound)
	ErrStyleOptionNotFound = fmt.Errorf("style option %w", ErrNotFound)
	ErrImageNotOwned       = fmt.Errorf("image upload is not owned by user: %w", ErrOwnership)

	// ErrStyleNotFound is matched by every StyleNotFoundError.
	ErrStyleNotFound = errors.New("style options not found or inactive")
)

// StyleNotFoundError lists every requested style id that is missing or
// inactive, in request order. It is a validation error.
type StyleNotFoundError struct {
	Missing []int64
}

func (e *StyleNotFoundError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: %s", ErrStyleNotFound, strings.Join(ids, ", "))
}

func (e *StyleNotFoundError) Is(target error) bool {
	return target == ErrStyleNotFound || target == ErrValidation
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func schedulingf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchedulingFailure, fmt.Sprintf(format, args...))
}
