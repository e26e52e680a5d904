package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/model"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination describes one page of a participant listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// BookingPage is one page of bookings visible to a participant.
type BookingPage struct {
	Items      []model.BookingSummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
}

// CategorizedBookings groups a student's bookings.  A booking may appear in
// several buckets or in none.
type CategorizedBookings struct {
	Total     int             `json:"total"`
	Upcoming  []model.Booking `json:"upcoming"`
	Completed []model.Booking `json:"completed"`
	Pending   []model.Booking `json:"pending"`
	Rejected  []model.Booking `json:"rejected"`
}

// BookingQueryService builds read views over the booking store.
type BookingQueryService struct {
	store        BookingStore
	logger       *zap.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

// NewBookingQueryService returns a query service.  now defaults to
// time.Now and timeout to five seconds.
func NewBookingQueryService(store BookingStore, logger *zap.Logger, now func() time.Time, timeout time.Duration) *BookingQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &BookingQueryService{store: store, logger: logger, now: now, storeTimeout: timeout}
}

// GetUserBookings lists bookings where userID is the student or the tutor,
// newest session first.
func (q *BookingQueryService) GetUserBookings(ctx context.Context, userID string, f model.BookingFilter) (*BookingPage, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if f.Status != "" && !f.Status.Valid() {
		var vErr ValidationError
		vErr.add("status", "unknown booking status")
		return nil, &vErr
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = DefaultPageLimit
	case f.Limit > MaxPageLimit:
		f.Limit = MaxPageLimit
	}

	sctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	items, total, err := q.store.QueryByParticipant(sctx, userID, f)
	if err != nil {
		return nil, q.storeError("query participant bookings", err)
	}
	if items == nil {
		items = []model.BookingSummary{}
	}
	return &BookingPage{
		Items: items,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

// GetStudentBookingsCategorized partitions the bookings requested by
// studentID.  Dates are compared as UTC calendar days, so a session today
// counts as upcoming.
func (q *BookingQueryService) GetStudentBookingsCategorized(ctx context.Context, studentID string) (*CategorizedBookings, error) {
	if studentID == "" {
		return nil, ErrUnauthorized
	}
	sctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()
	all, err := q.store.ListByStudent(sctx, studentID)
	if err != nil {
		return nil, q.storeError("list student bookings", err)
	}
	return categorize(all, q.now()), nil
}

func categorize(all []model.Booking, now time.Time) *CategorizedBookings {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := &CategorizedBookings{
		Total:     len(all),
		Upcoming:  []model.Booking{},
		Completed: []model.Booking{},
		Pending:   []model.Booking{},
		Rejected:  []model.Booking{},
	}
	for _, b := range all {
		if !b.Date.UTC().Before(today) &&
			b.Status != model.BookingStatusCompleted && b.Status != model.BookingStatusRejected {
			out.Upcoming = append(out.Upcoming, b)
		}
		switch b.Status {
		case model.BookingStatusCompleted:
			out.Completed = append(out.Completed, b)
		case model.BookingStatusPending:
			out.Pending = append(out.Pending, b)
		case model.BookingStatusRejected:
			out.Rejected = append(out.Rejected, b)
		}
	}
	return out
}

func (q *BookingQueryService) storeError(op string, err error) error {
	return storeError(q.logger, op, err)
}
