// Package service implements the booking state machine, the idempotency
// guard and the background sweeper on top of the seat ledger.  The
// ledger serializes per-seat mutations; this layer owns the booking
// lifecycle (PENDING -> CONFIRMED/CANCELLED/EXPIRED, CONFIRMED ->
// CANCELLED/COMPLETED) and makes sure a booking and its seats always
// transition together.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenWork17/Vexeviet-BE/internal/clock"
	"github.com/BenWork17/Vexeviet-BE/internal/model"
	"github.com/BenWork17/Vexeviet-BE/internal/queue"
	"github.com/BenWork17/Vexeviet-BE/internal/utils"
)

// SeatLedger is the authoritative occupancy store for seat slots.
// Implemented by repository.SeatLedgerRepo; faked in tests.
type SeatLedger interface {
	CheckAvailability(ctx context.Context, routeID string, date time.Time, seatNumbers []string, now time.Time) (bool, []string, error)
	Hold(ctx context.Context, routeID string, date time.Time, seatNumbers []string, holdID string, price int64, now time.Time, ttl time.Duration) ([]model.SeatSlot, error)
	AttachBooking(ctx context.Context, holdID, bookingID string) (int64, error)
	Confirm(ctx context.Context, holdID, bookingID string, now time.Time) (int64, error)
	Release(ctx context.Context, holdID string) (int64, error)
	ReleaseByBooking(ctx context.Context, bookingID string) (int64, error)
	ReleaseHeldByBooking(ctx context.Context, bookingID string) (int64, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	ListByRouteAndDate(ctx context.Context, routeID string, date time.Time) ([]model.SeatSlot, error)
}

// BookingStore persists booking aggregates.  Implemented by
// repository.BookingRepo.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, passengers []model.Passenger) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByCode(ctx context.Context, code string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	MarkConfirmed(ctx context.Context, id string, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, reason *string, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
}

// IdempotencyGuard maps a client-supplied key to at most one booking.
// Implemented by RedisIdempotency.
type IdempotencyGuard interface {
	BeginOrReturn(ctx context.Context, key string) (existingBookingID string, proceed bool, err error)
	Complete(ctx context.Context, key, bookingID string) error
	Abort(ctx context.Context, key string) error
}

// EventPublisher delivers lifecycle events to the notifier collaborator.
// Implemented by queue.Publisher.  Delivery is fire-and-forget from the
// state machine's perspective.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, payload interface{}) error
}

// BookingConfig carries the booking policy knobs the service needs.
type BookingConfig struct {
	CodePrefix      string        // prefix for booking codes
	MaxSeats        int           // maximum seats per booking
	HoldTTL         time.Duration // default hold lifetime
	MinHoldTTL      time.Duration // clamp lower bound for caller TTLs
	MaxHoldTTL      time.Duration // clamp upper bound for caller TTLs
	PaymentWindow   time.Duration // payment deadline for new bookings
	ExpireBatchSize int           // max bookings expired per sweep tick
}

// BookingService coordinates the seat ledger, booking store,
// idempotency guard and event publisher.  All dependencies are
// injected; the service owns no connections.
type BookingService struct {
	ledger SeatLedger
	store  BookingStore
	guard  IdempotencyGuard
	events EventPublisher
	clock  clock.Clock
	logger *zap.Logger
	cfg    BookingConfig
}

// NewBookingService wires a BookingService.  All dependencies must be
// non-nil; a zero ExpireBatchSize defaults to 200.
func NewBookingService(ledger SeatLedger, store BookingStore, guard IdempotencyGuard, events EventPublisher, clk clock.Clock, logger *zap.Logger, cfg BookingConfig) *BookingService {
	if ledger == nil || store == nil || guard == nil || events == nil || clk == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if cfg.ExpireBatchSize <= 0 {
		cfg.ExpireBatchSize = 200
	}
	return &BookingService{
		ledger: ledger,
		store:  store,
		guard:  guard,
		events: events,
		clock:  clk,
		logger: logger,
		cfg:    cfg,
	}
}

// PassengerInput describes one traveller in a booking request.  The
// passenger at index i receives the seat at index i of the request's
// seat list.
type PassengerInput struct {
	FirstName string
	LastName  string
	IDNumber  *string
}

// CreateBookingInput is the request to create a booking.  SeatPrice is
// the per-seat pass-through amount supplied by the pricing
// collaborator; HoldTTL of zero means the configured default.
type CreateBookingInput struct {
	UserID         string
	RouteID        string
	DepartureDate  time.Time
	Seats          []string
	Passengers     []PassengerInput
	SeatPrice      int64
	IdempotencyKey string
	HoldTTL        time.Duration
}

// clampTTL validates and clamps a caller-supplied hold TTL.  Zero means
// the configured default; negative values are rejected; anything else
// is clamped into the configured bounds.
func (s *BookingService) clampTTL(ttl time.Duration) (time.Duration, error) {
	if ttl == 0 {
		return s.cfg.HoldTTL, nil
	}
	if ttl < 0 {
		return 0, model.NewValidationError("hold ttl must be positive, got %s", ttl)
	}
	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL, nil
	}
	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL, nil
	}
	return ttl, nil
}

// validateSeats rejects empty, oversized and duplicated seat lists.
func (s *BookingService) validateSeats(seats []string) error {
	if len(seats) == 0 {
		return model.NewValidationError("at least one seat is required")
	}
	if len(seats) > s.cfg.MaxSeats {
		return model.NewValidationError("maximum %d seats allowed per booking", s.cfg.MaxSeats)
	}
	seen := make(map[string]struct{}, len(seats))
	for _, sn := range seats {
		if sn == "" {
			return model.NewValidationError("seat number must not be empty")
		}
		if _, dup := seen[sn]; dup {
			return model.NewValidationError("duplicate seat number %q", sn)
		}
		seen[sn] = struct{}{}
	}
	return nil
}

// CreateBooking creates a PENDING booking with its seats held, exactly
// once per idempotency key.  A retry with a known key returns the
// original booking without touching the ledger; a concurrent duplicate
// waits briefly and then fails with model.ErrIdempotencyInFlight.  Seat
// conflicts surface as model.SeatsUnavailableError with the full
// conflict list and leave no state behind.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.IdempotencyKey == "" {
		return nil, model.NewValidationError("idempotency key is required")
	}
	if err := s.validateSeats(in.Seats); err != nil {
		return nil, err
	}
	if len(in.Passengers) != len(in.Seats) {
		return nil, model.NewValidationError("number of passengers (%d) must match number of seats (%d)", len(in.Passengers), len(in.Seats))
	}
	ttl, err := s.clampTTL(in.HoldTTL)
	if err != nil {
		return nil, err
	}
	// The hold must outlive the payment window: a shorter TTL would let
	// the sweeper reclaim seats from a booking still inside its own
	// deadline.  Bare holds (no booking attached) keep the caller's TTL.
	if ttl < s.cfg.PaymentWindow {
		ttl = s.cfg.PaymentWindow
	}

	existingID, proceed, err := s.guard.BeginOrReturn(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !proceed {
		utils.IdempotentReplaysTotal.Inc()
		return s.store.GetByID(ctx, existingID)
	}

	now := s.clock.Now()
	holdID := uuid.NewString()

	if _, err := s.ledger.Hold(ctx, in.RouteID, in.DepartureDate, in.Seats, holdID, in.SeatPrice, now, ttl); err != nil {
		s.abortKey(ctx, in.IdempotencyKey)
		var unavailable *model.SeatsUnavailableError
		if errors.As(err, &unavailable) {
			utils.SeatHoldConflictsTotal.Inc()
		}
		return nil, err
	}
	utils.SeatHoldsTotal.Inc()

	code, err := utils.NewBookingCode(s.cfg.CodePrefix)
	if err != nil {
		s.releaseAndAbort(ctx, holdID, in.IdempotencyKey)
		return nil, err
	}

	booking := &model.Booking{
		ID:              uuid.NewString(),
		BookingCode:     code,
		UserID:          in.UserID,
		RouteID:         in.RouteID,
		DepartureDate:   in.DepartureDate,
		HoldID:          holdID,
		Status:          model.BookingStatusPending,
		Seats:           append([]string(nil), in.Seats...),
		TotalPrice:      in.SeatPrice * int64(len(in.Seats)),
		PaymentDeadline: now.Add(s.cfg.PaymentWindow),
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	passengers := make([]model.Passenger, 0, len(in.Passengers))
	for i, p := range in.Passengers {
		passengers = append(passengers, model.Passenger{
			BookingID:  booking.ID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			SeatNumber: in.Seats[i],
			IDNumber:   p.IDNumber,
		})
	}

	if err := s.store.Create(ctx, booking, passengers); err != nil {
		s.releaseAndAbort(ctx, holdID, in.IdempotencyKey)
		return nil, err
	}
	if _, err := s.ledger.AttachBooking(ctx, holdID, booking.ID); err != nil {
		// Without the link, booking-scoped release cannot find these
		// seats, so the booking must not survive.
		s.releaseAndAbort(ctx, holdID, in.IdempotencyKey)
		return nil, err
	}

	if err := s.guard.Complete(ctx, in.IdempotencyKey, booking.ID); err != nil {
		// The booking exists; a lost record only costs a duplicate
		// check on retry, which the store's unique key absorbs.
		s.logger.Warn("idempotency complete failed",
			zap.String("booking_id", booking.ID), zap.Error(err))
	}

	utils.BookingsCreatedTotal.Inc()
	s.emit(ctx, queue.QueueBookingCreated, queue.BookingCreatedEvent{
		Type:            "BOOKING_CREATED",
		BookingID:       booking.ID,
		BookingCode:     booking.BookingCode,
		UserID:          booking.UserID,
		RouteID:         booking.RouteID,
		DepartureDate:   booking.DepartureDate.UTC().Format("2006-01-02"),
		Seats:           booking.Seats,
		TotalPrice:      booking.TotalPrice,
		PaymentDeadline: booking.PaymentDeadline.Format(time.RFC3339),
		Timestamp:       now.Format(time.RFC3339),
	})
	s.emit(ctx, queue.QueueSeatReserved, queue.SeatReservedEvent{
		Type:          "SEAT_RESERVED",
		RouteID:       booking.RouteID,
		DepartureDate: booking.DepartureDate.UTC().Format("2006-01-02"),
		Seats:         booking.Seats,
		BookingID:     booking.ID,
		Timestamp:     now.Format(time.RFC3339),
	})
	return booking, nil
}

// ConfirmBooking flips a PENDING booking to CONFIRMED and converts its
// held seats to BOOKED.  Confirmation is rejected after the payment
// deadline even when the seats have not been swept yet.  If fewer seats
// convert than the booking owns, the partial conversion is undone, the
// booking stays PENDING, and model.ErrSeatStateMismatch is returned and
// logged as a high-severity anomaly.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingStatusPending {
		return nil, model.ErrConflict
	}
	now := s.clock.Now()
	if now.After(b.PaymentDeadline) {
		return nil, model.ErrBookingExpired
	}

	count, err := s.ledger.Confirm(ctx, b.HoldID, b.ID, now)
	if err != nil {
		return nil, err
	}
	if count != int64(len(b.Seats)) {
		if count > 0 {
			if _, relErr := s.ledger.ReleaseByBooking(ctx, b.ID); relErr != nil {
				s.logger.Error("failed to undo partial seat confirmation",
					zap.String("booking_id", b.ID), zap.Error(relErr))
			}
		} else if cur, curErr := s.store.GetByID(ctx, bookingID); curErr == nil && cur.Status != model.BookingStatusPending {
			// A concurrent confirm or cancel committed first.
			return nil, model.ErrConflict
		}
		s.logger.Error("seat confirmation count mismatch",
			zap.String("booking_id", b.ID),
			zap.Int64("confirmed", count),
			zap.Int("expected", len(b.Seats)))
		return nil, model.ErrSeatStateMismatch
	}

	ok, err := s.store.MarkConfirmed(ctx, b.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent cancel won the status race after our seats
		// converted; free them so the cancelled booking owns nothing.
		if _, relErr := s.ledger.ReleaseByBooking(ctx, b.ID); relErr != nil {
			s.logger.Error("failed to release seats after lost confirm race",
				zap.String("booking_id", b.ID), zap.Error(relErr))
		}
		return nil, model.ErrConflict
	}

	b.Status = model.BookingStatusConfirmed
	b.ConfirmedAt = &now
	utils.BookingsConfirmedTotal.Inc()
	s.emit(ctx, queue.QueueBookingConfirmed, queue.BookingConfirmedEvent{
		Type:        "BOOKING_CONFIRMED",
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		ConfirmedAt: now.Format(time.RFC3339),
		Timestamp:   now.Format(time.RFC3339),
	})
	return b, nil
}

// CancelBooking cancels a booking on behalf of its owner, releasing its
// seats whether they are still HELD or already BOOKED.  Bookings owned
// by other users are reported as not found rather than forbidden so the
// existence of foreign bookings is not leaked.  Terminal bookings fail
// with model.ErrConflict.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID string, reason string) (*model.Booking, error) {
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, model.ErrNotFound
	}
	if model.Terminal(b.Status) {
		return nil, model.ErrConflict
	}

	if _, err := s.ledger.ReleaseByBooking(ctx, b.ID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	ok, err := s.store.MarkCancelled(ctx, b.ID, reasonPtr, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrConflict
	}

	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancellationReason = reasonPtr
	utils.BookingsCancelledTotal.Inc()
	s.emit(ctx, queue.QueueBookingCancelled, queue.BookingCancelledEvent{
		Type:        "BOOKING_CANCELLED",
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		Reason:      reason,
		CancelledAt: now.Format(time.RFC3339),
		Timestamp:   now.Format(time.RFC3339),
	})
	s.emit(ctx, queue.QueueSeatReleased, queue.SeatReleasedEvent{
		Type:          "SEAT_RELEASED",
		RouteID:       b.RouteID,
		DepartureDate: b.DepartureDate.UTC().Format("2006-01-02"),
		Seats:         b.Seats,
		BookingID:     b.ID,
		Timestamp:     now.Format(time.RFC3339),
	})
	return b, nil
}

// ExpirePendingBookings moves PENDING bookings past their payment
// deadline to EXPIRED, releasing their seats first so a booking is
// never marked EXPIRED while it still holds seats.  Only HELD rows are
// released: a confirmation that committed between the stale listing
// and the release has already converted its seats to BOOKED and must
// keep them.  A booking whose seat release fails is skipped and
// retried on the next run.  Per-item failures are logged; the batch
// always continues.  Returns the number of bookings expired.
func (s *BookingService) ExpirePendingBookings(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.store.ListExpiredPending(ctx, now, s.cfg.ExpireBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range stale {
		b := &stale[i]
		if _, err := s.ledger.ReleaseHeldByBooking(ctx, b.ID); err != nil {
			s.logger.Warn("expiry: seat release failed, will retry",
				zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		ok, err := s.store.MarkExpired(ctx, b.ID, now)
		if err != nil {
			s.logger.Warn("expiry: status update failed",
				zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		if !ok {
			// Confirmed or cancelled since it was listed; nothing to do.
			continue
		}
		expired++
		utils.BookingsExpiredTotal.Inc()
		s.emit(ctx, queue.QueueSeatReleased, queue.SeatReleasedEvent{
			Type:          "SEAT_RELEASED",
			RouteID:       b.RouteID,
			DepartureDate: b.DepartureDate.UTC().Format("2006-01-02"),
			Seats:         b.Seats,
			BookingID:     b.ID,
			Timestamp:     now.Format(time.RFC3339),
		})
	}
	return expired, nil
}

// GetBooking returns a booking by ID, hiding bookings owned by other
// users behind model.ErrNotFound when userID is non-empty.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	b, err := s.store.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if userID != "" && b.UserID != userID {
		return nil, model.ErrNotFound
	}
	return b, nil
}

// GetBookingByCode returns a booking by its human-facing code with the
// same ownership rule as GetBooking.
func (s *BookingService) GetBookingByCode(ctx context.Context, code, userID string) (*model.Booking, error) {
	b, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if userID != "" && b.UserID != userID {
		return nil, model.ErrNotFound
	}
	return b, nil
}

// ListBookings returns the user's bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.store.ListByUser(ctx, userID)
}

// HoldResult is returned by HoldSeats: the opaque hold identifier and
// the slots it covers, all sharing one expiry.
type HoldResult struct {
	HoldID    string
	ExpiresAt time.Time
	Slots     []model.SeatSlot
}

// HoldSeats places a bare hold without creating a booking, for the
// seat-selection step of the checkout flow.  The TTL is clamped to the
// configured bounds; conflicts surface as model.SeatsUnavailableError.
func (s *BookingService) HoldSeats(ctx context.Context, routeID string, date time.Time, seats []string, seatPrice int64, ttl time.Duration) (*HoldResult, error) {
	if err := s.validateSeats(seats); err != nil {
		return nil, err
	}
	clamped, err := s.clampTTL(ttl)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	holdID := uuid.NewString()
	slots, err := s.ledger.Hold(ctx, routeID, date, seats, holdID, seatPrice, now, clamped)
	if err != nil {
		var unavailable *model.SeatsUnavailableError
		if errors.As(err, &unavailable) {
			utils.SeatHoldConflictsTotal.Inc()
		}
		return nil, err
	}
	utils.SeatHoldsTotal.Inc()
	return &HoldResult{HoldID: holdID, ExpiresAt: now.Add(clamped), Slots: slots}, nil
}

// ReleaseHold frees every seat still held under holdID.  Returns the
// number of seats released; releasing an unknown or already-expired
// hold is not an error.
func (s *BookingService) ReleaseHold(ctx context.Context, holdID string) (int64, error) {
	return s.ledger.Release(ctx, holdID)
}

// CheckAvailability reports whether the given seats are free to hold
// right now, with the full conflict list when they are not.
func (s *BookingService) CheckAvailability(ctx context.Context, routeID string, date time.Time, seats []string) (bool, []string, error) {
	return s.ledger.CheckAvailability(ctx, routeID, date, seats, s.clock.Now())
}

// ListSeats returns every occupied slot for a route and date.
func (s *BookingService) ListSeats(ctx context.Context, routeID string, date time.Time) ([]model.SeatSlot, error) {
	return s.ledger.ListByRouteAndDate(ctx, routeID, date)
}

// emit publishes a lifecycle event best-effort.  The transition already
// committed, so a publish failure is logged and swallowed.
func (s *BookingService) emit(ctx context.Context, queueName string, payload interface{}) {
	if err := s.events.Publish(ctx, queueName, payload); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("queue", queueName), zap.Error(err))
	}
}

// abortKey drops an idempotency lease, logging on failure.
func (s *BookingService) abortKey(ctx context.Context, key string) {
	if err := s.guard.Abort(ctx, key); err != nil {
		s.logger.Warn("idempotency abort failed", zap.Error(err))
	}
}

// releaseAndAbort unwinds a hold and its idempotency lease after a
// failure between hold and booking creation.
func (s *BookingService) releaseAndAbort(ctx context.Context, holdID, key string) {
	if _, err := s.ledger.Release(ctx, holdID); err != nil {
		s.logger.Error("failed to release hold during unwind",
			zap.String("hold_id", holdID), zap.Error(err))
	}
	s.abortKey(ctx, key)
}
