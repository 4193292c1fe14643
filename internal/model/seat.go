package model

import "time"

// Seat status values for a booking_seats row.  A seat slot with no
// row at all is implicitly available.
const (
	SeatStatusAvailable = "AVAILABLE" // logical status only; available slots carry no row
	SeatStatusHeld      = "HELD"      // temporarily claimed by a hold, expires at LockedUntil
	SeatStatusBooked    = "BOOKED"    // committed to a confirmed booking
	SeatStatusBlocked   = "BLOCKED"   // taken out of sale by an operator
)

// SeatSlot tracks the occupancy of a single seat on a specific route and
// departure date.  Slots are created when a hold is placed and removed
// when the hold or booking releases them, so the booking_seats table only
// contains seats that are currently held, booked or blocked.
//
// Fields:
//
//	ID            – primary key identifier.
//	RouteID       – route on which the seat is sold.
//	DepartureDate – departure date (normalized to midnight UTC).
//	SeatNumber    – seat label from the route's bus template, e.g. "A1".
//	Status        – HELD, BOOKED or BLOCKED.
//	HoldID        – identifier of the hold claiming this seat (HELD only).
//	BookingID     – booking that owns this seat (BOOKED only).
//	Price         – seat price in VND, snapshotted when the hold was placed.
//	LockedAt      – when the current hold was placed.
//	LockedUntil   – when the current hold expires; past this instant a
//	                HELD slot is logically available even before the
//	                sweeper physically removes it.
type SeatSlot struct {
	ID            uint64     // booking_seats.id
	RouteID       string     // booking_seats.route_id
	DepartureDate time.Time  // booking_seats.departure_date
	SeatNumber    string     // booking_seats.seat_number
	Status        string     // booking_seats.status
	HoldID        *string    // booking_seats.hold_id (nullable)
	BookingID     *string    // booking_seats.booking_id (nullable)
	Price         int64      // booking_seats.price
	LockedAt      *time.Time // booking_seats.locked_at (nullable)
	LockedUntil   *time.Time // booking_seats.locked_until (nullable)
}

// Live reports whether this slot blocks other holds at the given
// instant.  BOOKED and BLOCKED slots always block; a HELD slot blocks
// only until its lock expires.
func (s *SeatSlot) Live(now time.Time) bool {
	switch s.Status {
	case SeatStatusBooked, SeatStatusBlocked:
		return true
	case SeatStatusHeld:
		return s.LockedUntil != nil && s.LockedUntil.After(now)
	}
	return false
}
