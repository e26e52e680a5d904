package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
)

// TutorDirectory lists bookable tutors.
type TutorDirectory interface {
	ListTutors(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
}

// TutorHandler serves the public tutor directory.  Responses carry only
// public fields.
type TutorHandler struct {
	Users  TutorDirectory
	Logger *zap.Logger
}

func NewTutorHandler(users TutorDirectory, logger *zap.Logger) *TutorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorHandler{Users: users, Logger: logger}
}

// PublicTutor is a tutor as exposed to unauthenticated clients.
type PublicTutor struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
}

func toPublicTutor(u model.User) PublicTutor {
	return PublicTutor{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Name: u.FullName()}
}

// List handles GET /tutors.
func (h *TutorHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	tutors, err := h.Users.ListTutors(ctx)
	if err != nil {
		h.Logger.Error("list tutors failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	out := make([]PublicTutor, 0, len(tutors))
	for _, t := range tutors {
		out = append(out, toPublicTutor(t))
	}
	return ok(c, http.StatusOK, "", out)
}

// Get handles GET /tutors/:tutorId.  Users that are not active tutors are
// reported as not found.
func (h *TutorHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.FindByID(ctx, c.Param("tutorId"))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (!u.IsTutor() || !u.IsActive)) {
		return fail(c, http.StatusNotFound, "Tutor not found")
	}
	if err != nil {
		h.Logger.Error("get tutor failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	return ok(c, http.StatusOK, "", toPublicTutor(u))
}
