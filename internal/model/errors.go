// Package model defines the domain types and the error taxonomy shared
// by the repository, service and handler layers.  Sentinel values allow
// higher layers to distinguish failure scenarios with errors.Is, while
// the struct errors carry details (conflict lists, validation messages)
// for the caller.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a booking does not exist or is not
// visible to the calling user.  Handlers translate it to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation cannot proceed because of
// the current state: double confirmation, cancelling a terminal
// booking, or losing a concurrent transition race.  Handlers translate
// it to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrBookingExpired is returned when a booking is confirmed after its
// payment deadline.  It is distinct from ErrConflict so callers can
// prompt the user to start over rather than retry.  HTTP 410.
var ErrBookingExpired = errors.New("booking expired")

// ErrIdempotencyInFlight is returned when another request with the same
// idempotency key is still creating its booking and the bounded wait
// ran out.  The caller may retry; it maps to HTTP 409.
var ErrIdempotencyInFlight = errors.New("request with this idempotency key is in flight")

// ErrSeatStateMismatch signals that seat confirmation touched fewer
// seats than the booking owns.  This is an internal inconsistency: the
// booking must not reach CONFIRMED and the anomaly is logged for
// operator attention.  Handlers return a generic 500.
var ErrSeatStateMismatch = errors.New("confirmed seat count does not match booking")

// ValidationError reports malformed input such as a passenger/seat
// count mismatch or an out-of-range hold TTL.  HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// SeatsUnavailableError is returned by the seat ledger when one or more
// requested seats are booked, blocked, or held by someone else.  It
// always carries the complete conflict list, not just the first seat,
// so the caller can present alternatives.  HTTP 409.
type SeatsUnavailableError struct {
	Conflicts []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats are no longer available: %s", strings.Join(e.Conflicts, ", "))
}
