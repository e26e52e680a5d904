package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/service"
)

// BookingEngine creates bookings and changes their status.
type BookingEngine interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*service.BookingCreated, error)
	UpdateBookingStatus(ctx context.Context, in service.UpdateStatusInput) (*service.BookingStatusUpdated, error)
}

// BookingQueries builds participant views.
type BookingQueries interface {
	GetUserBookings(ctx context.Context, userID string, f model.BookingFilter) (*service.BookingPage, error)
	GetStudentBookingsCategorized(ctx context.Context, studentID string) (*service.CategorizedBookings, error)
}

// BookingHandler serves the booking endpoints.  All routes sit behind
// JWTAuth.
type BookingHandler struct {
	Engine  BookingEngine
	Queries BookingQueries
	Logger  *zap.Logger
}

func NewBookingHandler(engine BookingEngine, queries BookingQueries, logger *zap.Logger) *BookingHandler {
	if engine == nil || queries == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{Engine: engine, Queries: queries, Logger: logger}
}

type createBookingReq struct {
	Subject        string                       `json:"subject"`
	Date           string                       `json:"date"`
	TimeSlot       model.TimeSlot               `json:"timeSlot"`
	MeetingDetails *service.MeetingDetailsInput `json:"meetingDetails"`
}

type manageBookingReq struct {
	Status      string `json:"status"`
	MeetingLink string `json:"meetingLink"`
}

// Create handles POST /book/:tutorId.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return writeServiceError(c, h.Logger, "bind booking request", invalidBody())
	}

	created, err := h.Engine.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		RequesterID:    userID,
		TutorID:        strings.TrimSpace(c.Param("tutorId")),
		Subject:        req.Subject,
		Date:           req.Date,
		TimeSlot:       req.TimeSlot,
		MeetingDetails: req.MeetingDetails,
	})
	if err != nil {
		return writeServiceError(c, h.Logger, "create booking", err)
	}
	return ok(c, http.StatusCreated, "Booking created successfully", created)
}

// Manage handles PATCH /manage/:bookingId.
func (h *BookingHandler) Manage(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	var req manageBookingReq
	if err := c.Bind(&req); err != nil {
		return writeServiceError(c, h.Logger, "bind booking request", invalidBody())
	}

	updated, err := h.Engine.UpdateBookingStatus(c.Request().Context(), service.UpdateStatusInput{
		RequesterID: userID,
		BookingID:   strings.TrimSpace(c.Param("bookingId")),
		Status:      model.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		MeetingLink: req.MeetingLink,
	})
	if err != nil {
		return writeServiceError(c, h.Logger, "update booking status", err)
	}
	return ok(c, http.StatusOK, fmt.Sprintf("Booking %s successfully", updated.Status), updated)
}

// List handles GET /bookings?status=&page=&limit=.  Non-numeric page or
// limit values fall back to the defaults.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	filter := model.BookingFilter{
		Status: model.BookingStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		Page:   page,
		Limit:  limit,
	}

	res, err := h.Queries.GetUserBookings(c.Request().Context(), userID, filter)
	if err != nil {
		return writeServiceError(c, h.Logger, "list bookings", err)
	}
	return c.JSON(http.StatusOK, envelope{
		Success:    true,
		Message:    "Bookings retrieved successfully",
		Data:       res.Items,
		Pagination: res.Pagination,
	})
}

// Categorized handles GET /bookings/categorized for the calling student.
func (h *BookingHandler) Categorized(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	res, err := h.Queries.GetStudentBookingsCategorized(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, h.Logger, "categorize bookings", err)
	}
	return ok(c, http.StatusOK, "", res)
}
