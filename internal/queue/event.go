// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer pair that carries booking notifications.
package queue

import "time"

// Event names carried in Notification.Event.
const (
	EventBookingRequested = "booking.requested"
	EventBookingReceived  = "booking.received"
	EventBookingStatus    = "booking.status_changed"
)

// Notification is one message addressed to one booking participant.  It
// carries everything a delivery worker needs so the consumer never queries
// the primary database.
type Notification struct {
	Event     string    `json:"event"`
	BookingID string    `json:"booking_id"`
	To        string    `json:"to"`
	ToName    string    `json:"to_name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
