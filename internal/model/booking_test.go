package model

import (
	"testing"
	"time"
)

func TestBookingStatus_CanTransition(t *testing.T) {
	t.Parallel()
	all := []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected, BookingStatusCompleted, BookingStatusCancelled}
	allowed := map[BookingStatus]map[BookingStatus]bool{
		BookingStatusPending:   {BookingStatusConfirmed: true, BookingStatusRejected: true, BookingStatusCancelled: true},
		BookingStatusConfirmed: {BookingStatusCompleted: true, BookingStatusCancelled: true},
	}
	for _, from := range all {
		for _, to := range all {
			if got, want := from.CanTransition(to), allowed[from][to]; got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBookingStatus_Predicates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status   BookingStatus
		valid    bool
		target   bool
		active   bool
		terminal bool
	}{
		{BookingStatusPending, true, false, true, false},
		{BookingStatusConfirmed, true, true, true, false},
		{BookingStatusRejected, true, true, false, true},
		{BookingStatusCompleted, true, true, true, true},
		{BookingStatusCancelled, true, true, false, true},
		{"archived", false, false, true, true},
	}
	for _, tc := range cases {
		if tc.status.Valid() != tc.valid || tc.status.IsTarget() != tc.target ||
			tc.status.Active() != tc.active || tc.status.Terminal() != tc.terminal {
			t.Errorf("%q: valid=%v target=%v active=%v terminal=%v", tc.status,
				tc.status.Valid(), tc.status.IsTarget(), tc.status.Active(), tc.status.Terminal())
		}
	}
}

func TestSlotKey_String(t *testing.T) {
	t.Parallel()
	k := SlotKey{TutorID: "t1", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Slot: TimeSlot{Start: "14:00", End: "15:00"}}
	if got := k.String(); got != "t1:2025-06-01:14:00-15:00" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestBookingFilter_Offset(t *testing.T) {
	t.Parallel()
	if got := (BookingFilter{Page: 3, Limit: 10}).Offset(); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	if got := (BookingFilter{Page: 0, Limit: 10}).Offset(); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestUser_FullName(t *testing.T) {
	t.Parallel()
	cases := map[string]User{
		"Ana Silva": {FirstName: "Ana", LastName: "Silva"},
		"Ana":       {FirstName: "Ana"},
		"Silva":     {LastName: "Silva"},
	}
	for want, u := range cases {
		if got := u.FullName(); got != want {
			t.Fatalf("FullName() = %q, want %q", got, want)
		}
	}
}
