package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tutorconnect-api/internal/model"
)

// BookingRepo provides persistence for tutoring session bookings.  The
// no-double-book invariant is owned by the uq_bookings_active_slot unique
// key: an insert that would create a second active booking for the same
// tutor, date and slot fails with ErrConflict.  Rows are never deleted.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.student_id, b.tutor_id, b.subject, b.session_date, b.slot_start, b.slot_end,
       b.status, b.meeting_platform, b.meeting_link, b.meeting_instructions, b.created_at, b.updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b            model.Booking
		link         sql.NullString
		instructions sql.NullString
	)
	err := row.Scan(&b.ID, &b.StudentID, &b.TutorID, &b.Subject, &b.Date,
		&b.TimeSlot.Start, &b.TimeSlot.End, &b.Status, &b.MeetingDetails.Platform,
		&link, &instructions, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if link.Valid {
		l := link.String
		b.MeetingDetails.Link = &l
	}
	if instructions.Valid {
		in := instructions.String
		b.MeetingDetails.Instructions = &in
	}
	b.Date = b.Date.UTC()
	return &b, nil
}

// FindActiveConflict returns the active booking occupying key, or nil
// when the slot is free.
func (r *BookingRepo) FindActiveConflict(ctx context.Context, key model.SlotKey) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
          FROM bookings b
          WHERE b.tutor_id = ? AND b.session_date = ? AND b.slot_start = ? AND b.slot_end = ?
            AND b.status NOT IN ('cancelled', 'rejected')
          LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q,
		key.TutorID, key.Date.Format(model.DateLayout), key.Slot.Start, key.Slot.End))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active conflict: %w", err)
	}
	return b, nil
}

// Insert persists b inside a transaction and reads back the database
// defaults (timestamps).  The caller assigns b.ID.  A unique-key
// violation on the active slot returns ErrConflict and nothing is written.
func (r *BookingRepo) Insert(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert booking: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings
        (id, student_id, tutor_id, subject, session_date, slot_start, slot_end, status,
         meeting_platform, meeting_link, meeting_instructions)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins,
		b.ID, b.StudentID, b.TutorID, b.Subject, b.DateString(), b.TimeSlot.Start, b.TimeSlot.End,
		b.Status, b.MeetingDetails.Platform, nullString(b.MeetingDetails.Link), nullString(b.MeetingDetails.Instructions))
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	stored, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, b.ID))
	if err != nil {
		return fmt.Errorf("read back booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert booking: %w", err)
	}
	committed = true
	*b = *stored
	return nil
}

// FindByID returns a booking by id or ErrNotFound.
func (r *BookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return b, nil
}

// Update applies patch as a compare-and-set on the current status.  It
// returns ErrNotFound when the booking does not exist and ErrConflict when
// its status is no longer patch.ExpectedStatus.
func (r *BookingRepo) Update(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update booking: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE bookings
        SET status = ?, meeting_link = COALESCE(?, meeting_link)
        WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, upd, patch.Status, nullString(patch.MeetingLink), id, patch.ExpectedStatus)
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update booking rows: %w", err)
	}

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read back booking: %w", err)
	}
	if affected == 0 {
		return nil, ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update booking: %w", err)
	}
	committed = true
	return b, nil
}

// QueryByParticipant lists bookings where userID is the student or the
// tutor, newest session first, together with the total number of matching
// rows.  Participant names are joined from users.
func (r *BookingRepo) QueryByParticipant(ctx context.Context, userID string, f model.BookingFilter) ([]model.BookingSummary, int, error) {
	where := `WHERE (b.student_id = ? OR b.tutor_id = ?)`
	args := []any{userID, userID}
	if f.Status != "" {
		where += ` AND b.status = ?`
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count participant bookings: %w", err)
	}

	q := `SELECT b.id, b.subject, b.session_date, b.slot_start, b.slot_end, b.status, b.meeting_link, b.created_at,
                 t.id, t.first_name, t.last_name, s.id, s.first_name, s.last_name
          FROM bookings b
          JOIN users t ON t.id = b.tutor_id
          JOIN users s ON s.id = b.student_id
          ` + where + `
          ORDER BY b.session_date DESC, b.created_at DESC, b.id DESC
          LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query participant bookings: %w", err)
	}
	defer rows.Close()

	items := make([]model.BookingSummary, 0)
	for rows.Next() {
		var (
			it            model.BookingSummary
			date          time.Time
			slot          model.TimeSlot
			link          sql.NullString
			tFirst, tLast string
			sFirst, sLast string
		)
		if err := rows.Scan(&it.ID, &it.Subject, &date, &slot.Start, &slot.End, &it.Status, &link, &it.CreatedAt,
			&it.Tutor.ID, &tFirst, &tLast, &it.Student.ID, &sFirst, &sLast); err != nil {
			return nil, 0, fmt.Errorf("scan participant booking: %w", err)
		}
		it.Date = date.UTC().Format(model.DateLayout)
		it.Time = slot.String()
		it.Tutor.Name = model.User{FirstName: tFirst, LastName: tLast}.FullName()
		it.Student.Name = model.User{FirstName: sFirst, LastName: sLast}.FullName()
		if link.Valid {
			l := link.String
			it.MeetingLink = &l
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByStudent returns every booking requested by studentID, earliest
// session first.
func (r *BookingRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
          FROM bookings b
          WHERE b.student_id = ?
          ORDER BY b.session_date ASC, b.slot_start ASC, b.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CompleteConfirmedBefore marks confirmed sessions held before day as
// completed and returns how many rows changed.
func (r *BookingRepo) CompleteConfirmedBefore(ctx context.Context, day time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'completed' WHERE status = 'confirmed' AND session_date < ?`,
		day.UTC().Format(model.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
