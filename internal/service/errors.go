package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced tutor or booking does not exist.
	ErrNotFound = errors.New("service: not found")
	// ErrConflict is returned when the requested slot is already actively booked.
	ErrConflict = errors.New("service: slot already booked")
	// ErrUnauthorized is returned when no authenticated identity is present.
	ErrUnauthorized = errors.New("service: unauthenticated")
	// ErrForbidden is returned when the caller is not a participant of the booking.
	ErrForbidden = errors.New("service: forbidden")
	// ErrInvalidTransition is returned when the lifecycle table does not allow
	// the requested status change, including a change lost to a concurrent update.
	ErrInvalidTransition = errors.New("service: invalid status transition")
	// ErrUnavailable is returned when a dependency timed out; callers may retry.
	ErrUnavailable = errors.New("service: temporarily unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; !exists {
		v.FieldErrors[field] = message
	}
}

// errOrNil returns v as an error only when it holds field errors.
func (v *ValidationError) errOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// ConflictError identifies the active booking that already holds a slot.
type ConflictError struct {
	BookingID string
	Date      string
	Time      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s %s already booked by %s", e.Date, e.Time, e.BookingID)
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	}
	return "unexpected"
}
