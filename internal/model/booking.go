package model

import "time"

// Booking lifecycle states.  PENDING and CONFIRMED are the only states
// a booking can move out of; CANCELLED, EXPIRED and COMPLETED are
// terminal.
const (
	BookingStatusPending   = "PENDING"   // created, awaiting payment
	BookingStatusConfirmed = "CONFIRMED" // payment received before the deadline
	BookingStatusCancelled = "CANCELLED" // cancelled by the customer
	BookingStatusExpired   = "EXPIRED"   // payment deadline passed while PENDING
	BookingStatusCompleted = "COMPLETED" // trip finished
)

// Terminal reports whether the given booking status admits no further
// transitions.
func Terminal(status string) bool {
	switch status {
	case BookingStatusCancelled, BookingStatusExpired, BookingStatusCompleted:
		return true
	}
	return false
}

// Booking groups one or more seats purchased by a user for a route on a
// departure date.  While a booking is PENDING its seats are HELD under
// HoldID; confirming the booking converts them to BOOKED.  A CANCELLED
// or EXPIRED booking owns no seats – they are released back to the pool.
//
// Fields:
//
//	ID                 – primary key identifier (UUID).
//	BookingCode        – short human-facing code, e.g. "VXV4K7QD2".
//	UserID             – user who created the booking.
//	RouteID            – route being travelled.
//	DepartureDate      – departure date (midnight UTC).
//	HoldID             – hold covering the booking's seats while PENDING.
//	Status             – lifecycle state, see constants above.
//	Seats              – committed seat numbers; always one per passenger.
//	TotalPrice         – total price in VND (pass-through amount).
//	PaymentDeadline    – instant after which the booking can no longer be
//	                     confirmed and becomes eligible for expiry.
//	IdempotencyKey     – client-supplied key, unique across bookings.
//	ConfirmedAt        – set when the booking is confirmed.
//	CancelledAt        – set when the booking is cancelled.
//	CancellationReason – optional reason supplied on cancellation.
//	CreatedAt          – creation timestamp.
//	UpdatedAt          – last update timestamp.
type Booking struct {
	ID                 string     // bookings.id
	BookingCode        string     // bookings.booking_code
	UserID             string     // bookings.user_id
	RouteID            string     // bookings.route_id
	DepartureDate      time.Time  // bookings.departure_date
	HoldID             string     // bookings.hold_id
	Status             string     // bookings.status
	Seats              []string   // booking_passengers.seat_number, ordered
	TotalPrice         int64      // bookings.total_price
	PaymentDeadline    time.Time  // bookings.payment_deadline
	IdempotencyKey     string     // bookings.idempotency_key
	ConfirmedAt        *time.Time // bookings.confirmed_at (nullable)
	CancelledAt        *time.Time // bookings.cancelled_at (nullable)
	CancellationReason *string    // bookings.cancellation_reason (nullable)
	CreatedAt          time.Time  // bookings.created_at
	UpdatedAt          time.Time  // bookings.updated_at
}

// Passenger is one traveller on a booking, tied to exactly one seat.
// The set of passengers defines the booking's committed seat set, which
// survives seat release on cancellation or expiry.
//
// Fields:
//
//	BookingID  – booking this passenger belongs to.
//	FirstName  – given name.
//	LastName   – family name.
//	SeatNumber – seat assigned to this passenger.
//	IDNumber   – optional national ID or passport number.
type Passenger struct {
	BookingID  string  // booking_passengers.booking_id
	FirstName  string  // booking_passengers.first_name
	LastName   string  // booking_passengers.last_name
	SeatNumber string  // booking_passengers.seat_number
	IDNumber   *string // booking_passengers.id_number (nullable)
}
