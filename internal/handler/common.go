// Package handler exposes the HTTP handlers of the booking API.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/middleware"
	"github.com/iliyamo/tutorconnect-api/internal/service"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success            bool              `json:"success"`
	Message            string            `json:"message,omitempty"`
	Data               any               `json:"data,omitempty"`
	Errors             map[string]string `json:"errors,omitempty"`
	Pagination         any               `json:"pagination,omitempty"`
	ConflictingBooking *conflictingPart  `json:"conflictingBooking,omitempty"`
}

type conflictingPart struct {
	ID   string `json:"id,omitempty"`
	Date string `json:"date"`
	Time string `json:"time"`
}

var errUnauthenticated = errors.New("missing user id in context")

// invalidBody reports a request body that could not be decoded.
func invalidBody() error {
	return &service.ValidationError{FieldErrors: map[string]string{"body": "request body must be valid JSON"}}
}

// getUserID returns the authenticated user id set by the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if id := middleware.UserID(c); id != "" {
		return id, nil
	}
	return "", errUnauthenticated
}

func ok(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope{Success: false, Message: msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError renders err without leaking internal details.
// Unexpected failures are logged with the full error.
func writeServiceError(c echo.Context, logger *zap.Logger, op string, err error) error {
	status := statusFor(err)
	body := envelope{Success: false}

	var (
		vErr *service.ValidationError
		cErr *service.ConflictError
	)
	switch {
	case errors.As(err, &vErr):
		body.Message = "Validation error"
		body.Errors = vErr.FieldErrors
	case errors.As(err, &cErr):
		body.Message = "This time slot is already booked"
		body.ConflictingBooking = &conflictingPart{ID: cErr.BookingID, Date: cErr.Date, Time: cErr.Time}
	case errors.Is(err, service.ErrNotFound):
		body.Message = "Not found"
	case errors.Is(err, service.ErrInvalidTransition):
		body.Message = "Booking cannot move to the requested status"
	case errors.Is(err, service.ErrUnauthorized):
		body.Message = "Authentication required"
	case errors.Is(err, service.ErrForbidden):
		body.Message = "You are not a participant of this booking"
	case errors.Is(err, service.ErrUnavailable):
		body.Message = "Service temporarily unavailable, please retry"
		c.Response().Header().Set("Retry-After", "1")
	default:
		body.Message = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err), zap.String("kind", service.ErrorKind(err)))
	} else {
		logger.Debug(op+" rejected", zap.Error(err), zap.String("kind", service.ErrorKind(err)))
	}
	return c.JSON(status, body)
}
