// Package queue defines the booking lifecycle events exchanged over the
// message broker and the publisher/consumer that move them.  Exactly one
// event is emitted per state transition that actually committed; a
// failed or rejected attempt emits nothing.
package queue

// Queue names, one per event type.  Durable queues under the default
// exchange; the routing key equals the queue name.
const (
	QueueBookingCreated   = "booking.created"
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueSeatReserved     = "seat.reserved"
	QueueSeatReleased     = "seat.released"
)

// BookingCreatedEvent is published when a booking is created PENDING
// with its seats held.  Downstream consumers (notification service,
// analytics) get everything they need without querying the primary
// database.
type BookingCreatedEvent struct {
	Type            string   `json:"type"` // "BOOKING_CREATED"
	BookingID       string   `json:"booking_id"`
	BookingCode     string   `json:"booking_code"`
	UserID          string   `json:"user_id"`
	RouteID         string   `json:"route_id"`
	DepartureDate   string   `json:"departure_date"`
	Seats           []string `json:"seats"`
	TotalPrice      int64    `json:"total_price"`
	PaymentDeadline string   `json:"payment_deadline"`
	Timestamp       string   `json:"timestamp"`
}

// BookingConfirmedEvent is published when payment succeeded and the
// booking's seats were converted to BOOKED.
type BookingConfirmedEvent struct {
	Type        string `json:"type"` // "BOOKING_CONFIRMED"
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	ConfirmedAt string `json:"confirmed_at"`
	Timestamp   string `json:"timestamp"`
}

// BookingCancelledEvent is published when a customer cancels a booking,
// whether it was still PENDING or already CONFIRMED.
type BookingCancelledEvent struct {
	Type        string `json:"type"` // "BOOKING_CANCELLED"
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	Reason      string `json:"reason,omitempty"`
	CancelledAt string `json:"cancelled_at"`
	Timestamp   string `json:"timestamp"`
}

// SeatReservedEvent is published when seats become committed to a
// booking.
type SeatReservedEvent struct {
	Type          string   `json:"type"` // "SEAT_RESERVED"
	RouteID       string   `json:"route_id"`
	DepartureDate string   `json:"departure_date"`
	Seats         []string `json:"seats"`
	BookingID     string   `json:"booking_id"`
	Timestamp     string   `json:"timestamp"`
}

// SeatReleasedEvent is published when seats return to the available
// pool after a cancellation or expiry.
type SeatReleasedEvent struct {
	Type          string   `json:"type"` // "SEAT_RELEASED"
	RouteID       string   `json:"route_id"`
	DepartureDate string   `json:"departure_date"`
	Seats         []string `json:"seats"`
	BookingID     string   `json:"booking_id"`
	Timestamp     string   `json:"timestamp"`
}
