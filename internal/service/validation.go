package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/tutorconnect-api/internal/model"
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):([0-5][0-9])$`)

// normalizeClock accepts H:MM or HH:MM (24h) and returns zero-padded HH:MM.
func normalizeClock(s string) (string, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], true
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day at UTC midnight.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(model.DateLayout, s); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := ts.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// validURI reports whether s is an absolute http(s) URL with a host.
func validURI(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validPlatform(p string) bool {
	for _, allowed := range model.MeetingPlatforms {
		if p == allowed {
			return true
		}
	}
	return false
}

// validateCreate checks a create request and returns the normalized
// booking draft fields.  All field problems are reported together.
func validateCreate(in CreateBookingInput) (date time.Time, slot model.TimeSlot, details model.MeetingDetails, subject string, err error) {
	var vErr ValidationError

	subject = strings.TrimSpace(in.Subject)
	if subject == "" {
		vErr.add("subject", "subject is required")
	}

	if strings.TrimSpace(in.Date) == "" {
		vErr.add("date", "date is required")
	} else if d, ok := parseDate(in.Date); ok {
		date = d
	} else {
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
	}

	start, okStart := normalizeClock(in.TimeSlot.Start)
	if !okStart {
		vErr.add("timeSlot.start", "start must be a HH:MM time")
	}
	end, okEnd := normalizeClock(in.TimeSlot.End)
	if !okEnd {
		vErr.add("timeSlot.end", "end must be a HH:MM time")
	}
	if okStart && okEnd && start >= end {
		vErr.add("timeSlot", "start must be before end")
	}
	slot = model.TimeSlot{Start: start, End: end}

	details.Platform = model.DefaultMeetingPlatform
	if md := in.MeetingDetails; md != nil {
		if p := strings.TrimSpace(md.Platform); p != "" {
			if validPlatform(p) {
				details.Platform = p
			} else {
				vErr.add("meetingDetails.platform",
					fmt.Sprintf("platform must be one of %s", strings.Join(model.MeetingPlatforms, ", ")))
			}
		}
		if l := strings.TrimSpace(md.Link); l != "" {
			if validURI(l) {
				details.Link = &l
			} else {
				vErr.add("meetingDetails.link", "link must be a valid URL")
			}
		}
		if ins := strings.TrimSpace(md.Instructions); ins != "" {
			details.Instructions = &ins
		}
	}

	if strings.TrimSpace(in.TutorID) == "" {
		vErr.add("tutorId", "tutor id is required")
	} else if in.TutorID == in.RequesterID {
		vErr.add("tutorId", "you cannot book a session with yourself")
	}

	return date, slot, details, subject, vErr.errOrNil()
}

// validateStatusUpdate checks the requested target status and meeting link.
func validateStatusUpdate(in UpdateStatusInput) (*string, error) {
	var vErr ValidationError

	if !in.Status.IsTarget() {
		vErr.add("status", "status must be one of confirmed, rejected, cancelled, completed")
	}

	var link *string
	if l := strings.TrimSpace(in.MeetingLink); l != "" {
		if validURI(l) {
			link = &l
		} else {
			vErr.add("meetingLink", "Meeting link must be a valid URL")
		}
	} else if in.Status == model.BookingStatusConfirmed {
		vErr.add("meetingLink", "meeting link is required to confirm a booking")
	}

	return link, vErr.errOrNil()
}
