package model

import (
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a tutoring session request.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// DateLayout is the wire and storage format of Booking.Date.
const DateLayout = "2006-01-02"

// DefaultMeetingPlatform is used when a request omits meetingDetails.platform.
const DefaultMeetingPlatform = "Zoom"

// MeetingPlatforms lists the accepted values of MeetingDetails.Platform.
var MeetingPlatforms = []string{"Zoom", "Google Meet", "Skype", "Other"}

// transitions is the explicit lifecycle table.  Statuses without an
// entry are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

// Valid reports whether s is one of the five known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected,
		BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// IsTarget reports whether s may be requested through a status update.
// Pending is only ever assigned at creation.
func (s BookingStatus) IsTarget() bool {
	return s.Valid() && s != BookingStatusPending
}

// Active reports whether a booking in this status occupies its slot.
func (s BookingStatus) Active() bool {
	return s != BookingStatusCancelled && s != BookingStatusRejected
}

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TimeSlot is a wall-clock range on Booking.Date.  Start and End are
// zero-padded 24h "HH:MM" strings so that lexical order equals time order.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// String renders the slot as "HH:MM-HH:MM".
func (t TimeSlot) String() string {
	return fmt.Sprintf("%s-%s", t.Start, t.End)
}

// MeetingDetails describes where a session takes place.
type MeetingDetails struct {
	Platform     string  `json:"platform"`
	Link         *string `json:"link"`
	Instructions *string `json:"instructions,omitempty"`
}

// Booking represents a row of the `bookings` table.
//
// Fields:
//
//	ID             – opaque UUID assigned at creation.
//	StudentID      – user who requested the session.
//	TutorID        – user with role tutor who is being booked.
//	Subject        – free-text subject of the session.
//	Date           – calendar day of the session (UTC midnight).
//	TimeSlot       – start and end time on Date.
//	Status         – lifecycle state.
//	MeetingDetails – platform, link and instructions.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Booking struct {
	ID             string         `json:"id"`
	StudentID      string         `json:"student_id"`
	TutorID        string         `json:"tutor_id"`
	Subject        string         `json:"subject"`
	Date           time.Time      `json:"date"`
	TimeSlot       TimeSlot       `json:"time_slot"`
	Status         BookingStatus  `json:"status"`
	MeetingDetails MeetingDetails `json:"meeting_details"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DateString formats Date with DateLayout.
func (b *Booking) DateString() string {
	return b.Date.Format(DateLayout)
}

// SlotKey identifies the tutor/date/slot tuple guarded against double booking.
type SlotKey struct {
	TutorID string
	Date    time.Time
	Slot    TimeSlot
}

// String returns a stable textual key, e.g. for a distributed lock name.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.TutorID, k.Date.Format(DateLayout), k.Slot)
}

// BookingPatch is applied by the store's Update.  ExpectedStatus makes the
// update a compare-and-set on the current status.
type BookingPatch struct {
	Status         BookingStatus
	ExpectedStatus BookingStatus
	MeetingLink    *string
}

// BookingFilter narrows a participant query.
type BookingFilter struct {
	Status BookingStatus
	Page   int
	Limit  int
}

// Offset returns the number of rows to skip for the filter's page.
func (f BookingFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Party is a denormalized participant reference.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BookingSummary is a booking joined with participant names, as listed to
// either participant.
type BookingSummary struct {
	ID          string        `json:"id"`
	Tutor       Party         `json:"tutor"`
	Student     Party         `json:"student"`
	Subject     string        `json:"subject"`
	Date        string        `json:"date"`
	Time        string        `json:"time"`
	Status      BookingStatus `json:"status"`
	MeetingLink *string       `json:"meetingLink"`
	CreatedAt   time.Time     `json:"createdAt"`
}
