package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/queue"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
)

// UserDirectory resolves participants.  A missing user is reported with
// repository.ErrNotFound.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

// Notifier delivers booking event messages.  Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, n queue.Notification) error
}

// BookingStore persists bookings.  Insert must fail with
// repository.ErrConflict when the slot already holds an active booking, and
// Update must fail with repository.ErrConflict when the current status is no
// longer patch.ExpectedStatus.
type BookingStore interface {
	FindActiveConflict(ctx context.Context, key model.SlotKey) (*model.Booking, error)
	Insert(ctx context.Context, b *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error)
	QueryByParticipant(ctx context.Context, userID string, f model.BookingFilter) ([]model.BookingSummary, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Booking, error)
}

// SlotLocker grants short leases on slot keys.  ok is false while another
// holder owns the key.
type SlotLocker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultNotifyTimeout = 10 * time.Second
	lockRetryInterval    = 25 * time.Millisecond
)

// Option configures a BookingService.
type Option func(*BookingService)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *BookingService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSlotLocker enables the per-slot lease around check-then-insert.
func WithSlotLocker(l SlotLocker) Option {
	return func(s *BookingService) { s.locker = l }
}

// WithTimeouts bounds store and notification calls.  Zero keeps the default.
func WithTimeouts(store, notify time.Duration) Option {
	return func(s *BookingService) {
		if store > 0 {
			s.storeTimeout = store
		}
		if notify > 0 {
			s.notifyTimeout = notify
		}
	}
}

// WithIDGenerator overrides booking id assignment.
func WithIDGenerator(gen func() string) Option {
	return func(s *BookingService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// BookingService creates bookings and moves them through their lifecycle.
type BookingService struct {
	store    BookingStore
	users    UserDirectory
	notifier Notifier
	locker   SlotLocker
	logger   *zap.Logger
	newID    func() string

	storeTimeout  time.Duration
	notifyTimeout time.Duration

	inflight sync.WaitGroup
}

// NewBookingService wires the engine.  notifier may be nil, in which case
// no messages are sent.
func NewBookingService(store BookingStore, users UserDirectory, notifier Notifier, opts ...Option) *BookingService {
	s := &BookingService{
		store:         store,
		users:         users,
		notifier:      notifier,
		logger:        zap.NewNop(),
		newID:         uuid.NewString,
		storeTimeout:  defaultStoreTimeout,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MeetingDetailsInput is the optional meeting block of a create request.
type MeetingDetailsInput struct {
	Platform     string `json:"platform"`
	Link         string `json:"link"`
	Instructions string `json:"instructions"`
}

// CreateBookingInput carries a booking request on behalf of RequesterID.
type CreateBookingInput struct {
	RequesterID    string
	TutorID        string
	Subject        string
	Date           string
	TimeSlot       model.TimeSlot
	MeetingDetails *MeetingDetailsInput
}

// TutorSummary identifies the booked tutor in a creation result.
type TutorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookingCreated is returned by CreateBooking.
type BookingCreated struct {
	ID        string              `json:"id"`
	Tutor     TutorSummary        `json:"tutor"`
	Subject   string              `json:"subject"`
	Date      string              `json:"date"`
	Time      string              `json:"time"`
	Status    model.BookingStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

// UpdateStatusInput asks for a status transition of BookingID.
type UpdateStatusInput struct {
	RequesterID string
	BookingID   string
	Status      model.BookingStatus
	MeetingLink string
}

// BookingStatusUpdated is returned by UpdateBookingStatus.
type BookingStatusUpdated struct {
	ID          string              `json:"id"`
	Status      model.BookingStatus `json:"status"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	MeetingLink *string             `json:"meetingLink"`
}

// CreateBooking validates the request, reserves the tutor's slot and
// records a pending booking.  The slot is never handed to two active
// bookings: a racing insert loses on the store's unique key and is reported
// as a *ConflictError naming the booking that holds the slot.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingCreated, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, ErrUnauthorized
	}
	date, slot, details, subject, err := validateCreate(in)
	if err != nil {
		return nil, err
	}

	student, err := s.lookupUser(ctx, in.RequesterID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	tutor, err := s.lookupUser(ctx, in.TutorID)
	if err != nil {
		return nil, err
	}
	if !tutor.IsTutor() || !tutor.IsActive {
		return nil, fmt.Errorf("tutor %s: %w", in.TutorID, ErrNotFound)
	}

	key := model.SlotKey{TutorID: tutor.ID, Date: date, Slot: slot}
	release, err := s.lockSlot(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkConflict(ctx, key); err != nil {
		return nil, err
	}

	b := &model.Booking{
		ID:             s.newID(),
		StudentID:      student.ID,
		TutorID:        tutor.ID,
		Subject:        subject,
		Date:           date,
		TimeSlot:       slot,
		Status:         model.BookingStatusPending,
		MeetingDetails: details,
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = s.store.Insert(sctx, b)
	cancel()
	if errors.Is(err, repository.ErrConflict) {
		s.logger.Info("booking insert lost slot race", zap.String("slot", key.String()))
		if cErr := s.checkConflict(ctx, key); cErr != nil {
			return nil, cErr
		}
		return nil, &ConflictError{Date: b.DateString(), Time: slot.String()}
	}
	if err != nil {
		return nil, s.storeError("insert booking", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("student_id", b.StudentID),
		zap.String("tutor_id", b.TutorID),
		zap.String("slot", key.String()),
	)

	s.dispatch(queue.Notification{
		Event:     queue.EventBookingRequested,
		BookingID: b.ID,
		To:        student.Email,
		ToName:    student.FullName(),
		Subject:   "Booking Request Sent",
		Body: fmt.Sprintf("Your booking request with %s for %s has been sent.",
			tutor.FullName(), subject),
	})
	s.dispatch(queue.Notification{
		Event:     queue.EventBookingReceived,
		BookingID: b.ID,
		To:        tutor.Email,
		ToName:    tutor.FullName(),
		Subject:   "New Booking Request",
		Body: fmt.Sprintf("You have a new booking request from %s for %s on %s from %s to %s.",
			student.FullName(), subject, b.DateString(), slot.Start, slot.End),
	})

	return &BookingCreated{
		ID:        b.ID,
		Tutor:     TutorSummary{ID: tutor.ID, Name: tutor.FullName(), Email: tutor.Email},
		Subject:   b.Subject,
		Date:      b.DateString(),
		Time:      b.TimeSlot.String(),
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}, nil
}

// UpdateBookingStatus moves a booking to in.Status on behalf of one of its
// participants.  The change is applied only if the booking still has the
// status it was read with, so concurrent transitions cannot both succeed.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, in UpdateStatusInput) (*BookingStatusUpdated, error) {
	if strings.TrimSpace(in.RequesterID) == "" {
		return nil, ErrUnauthorized
	}
	link, err := validateStatusUpdate(in)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	b, err := s.store.FindByID(sctx, in.BookingID)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", in.BookingID, ErrNotFound)
	}
	if err != nil {
		return nil, s.storeError("find booking", err)
	}

	if !s.AuthorizeParticipant(b, in.RequesterID) {
		s.logger.Warn("status change by non-participant",
			zap.String("booking_id", b.ID), zap.String("requester_id", in.RequesterID))
		return nil, ErrForbidden
	}
	if b.Status.Terminal() {
		return nil, fmt.Errorf("booking is already %s: %w", b.Status, ErrInvalidTransition)
	}
	if !b.Status.CanTransition(in.Status) {
		return nil, fmt.Errorf("%s -> %s: %w", b.Status, in.Status, ErrInvalidTransition)
	}

	sctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	updated, err := s.store.Update(sctx, b.ID, model.BookingPatch{
		Status:         in.Status,
		ExpectedStatus: b.Status,
		MeetingLink:    link,
	})
	cancel()
	switch {
	case errors.Is(err, repository.ErrConflict):
		return nil, fmt.Errorf("booking %s changed concurrently: %w", b.ID, ErrInvalidTransition)
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("booking %s: %w", b.ID, ErrNotFound)
	case err != nil:
		return nil, s.storeError("update booking", err)
	}

	s.logger.Info("booking status changed",
		zap.String("booking_id", updated.ID),
		zap.String("from", string(b.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", in.RequesterID),
	)

	recipientID := updated.TutorID
	if in.RequesterID == updated.TutorID {
		recipientID = updated.StudentID
	}
	s.notifyStatusChange(updated, in.RequesterID, recipientID)

	return &BookingStatusUpdated{
		ID:          updated.ID,
		Status:      updated.Status,
		UpdatedAt:   updated.UpdatedAt,
		MeetingLink: updated.MeetingDetails.Link,
	}, nil
}

// AuthorizeParticipant reports whether requesterID is the student or the
// tutor of b.
func (s *BookingService) AuthorizeParticipant(b *model.Booking, requesterID string) bool {
	if b == nil || requesterID == "" {
		return false
	}
	return requesterID == b.StudentID || requesterID == b.TutorID
}

// Wait blocks until every dispatched notification has finished.
func (s *BookingService) Wait() { s.inflight.Wait() }

func (s *BookingService) lookupUser(ctx context.Context, id string) (model.User, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.FindByID(sctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, s.storeError("find user", err)
	}
	return u, nil
}

// checkConflict returns a *ConflictError when key is actively booked.
func (s *BookingService) checkConflict(ctx context.Context, key model.SlotKey) error {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	existing, err := s.store.FindActiveConflict(sctx, key)
	if err != nil {
		return s.storeError("find conflict", err)
	}
	if existing == nil {
		return nil
	}
	return &ConflictError{
		BookingID: existing.ID,
		Date:      existing.DateString(),
		Time:      existing.TimeSlot.String(),
	}
}

// lockSlot waits for the slot lease, bounded by the store timeout.  A
// failing lock backend is logged and skipped since the store's unique key
// still guards the slot.
func (s *BookingService) lockSlot(ctx context.Context, key model.SlotKey) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	lctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		release, ok, err := s.locker.Acquire(lctx, key.String())
		if lctx.Err() != nil {
			if ok {
				release()
			}
			return nil, fmt.Errorf("waiting for slot %s: %w", key, ErrUnavailable)
		}
		if err != nil {
			s.logger.Warn("slot lock unavailable, relying on unique key",
				zap.String("slot", key.String()), zap.Error(err))
			return noop, nil
		}
		if ok {
			return release, nil
		}
		select {
		case <-lctx.Done():
			return nil, fmt.Errorf("waiting for slot %s: %w", key, ErrUnavailable)
		case <-ticker.C:
		}
	}
}

func (s *BookingService) storeError(op string, err error) error {
	return storeError(s.logger, op, err)
}

// storeError logs err and maps timeouts and broken connections to
// ErrUnavailable.  Other failures are returned wrapped.
func storeError(logger *zap.Logger, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		logger.Warn("store unavailable", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	logger.Error("store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// dispatch sends n in the background on a context detached from the
// request.  Failures are logged only.
func (s *BookingService) dispatch(n queue.Notification) {
	if s.notifier == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, n); err != nil {
			s.logger.Warn("notification not delivered",
				zap.String("event", n.Event),
				zap.String("booking_id", n.BookingID),
				zap.Error(err))
		}
	}()
}

// notifyStatusChange resolves the actor and recipient off the request path
// and tells the recipient about the new status.
func (s *BookingService) notifyStatusChange(b *model.Booking, actorID, recipientID string) {
	if s.notifier == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		actor, err := s.users.FindByID(ctx, actorID)
		if err != nil {
			s.logger.Warn("status notification skipped", zap.String("booking_id", b.ID), zap.Error(err))
			return
		}
		recipient, err := s.users.FindByID(ctx, recipientID)
		if err != nil {
			s.logger.Warn("status notification skipped", zap.String("booking_id", b.ID), zap.Error(err))
			return
		}
		n := queue.Notification{
			Event:     queue.EventBookingStatus,
			BookingID: b.ID,
			To:        recipient.Email,
			ToName:    recipient.FullName(),
			Subject:   fmt.Sprintf("Booking %s", b.Status),
			Body: fmt.Sprintf("Your booking for %s has been %s by %s.",
				b.Subject, b.Status, actor.FirstName),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.notifier.Send(ctx, n); err != nil {
			s.logger.Warn("notification not delivered",
				zap.String("event", n.Event),
				zap.String("booking_id", n.BookingID),
				zap.Error(err))
		}
	}()
}
