package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
)

const mysqlDeadlock = 1213

// retryableHoldError reports whether err is the loser's side of an
// insert race between two first-time holds: either tx hit the uq_slot
// unique key (1062) or InnoDB chose it as the deadlock victim (1213).
func retryableHoldError(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDuplicateEntry || me.Number == mysqlDeadlock
}

// SeatLedgerRepo is the source of truth for per-(route, date, seat)
// occupancy.  It provides the race-free primitives the booking state
// machine is built on: an atomic all-or-nothing batch hold, conversion
// of held seats to booked, and the release paths used by cancellation
// and expiry.  All mutating operations on the same seat slot are
// serialized through SELECT ... FOR UPDATE row locks inside a
// transaction, so two concurrent holds on overlapping seat sets cannot
// both succeed.
//
// Expiry comparisons take the current instant as a parameter instead of
// reading the database clock, so callers inject time through the clock
// package and tests can pin it.
type SeatLedgerRepo struct {
	db *sql.DB
}

// NewSeatLedgerRepo returns a new SeatLedgerRepo bound to the provided database.
func NewSeatLedgerRepo(db *sql.DB) *SeatLedgerRepo { return &SeatLedgerRepo{db: db} }

// DB exposes the underlying handle so callers can coordinate
// transactions spanning multiple repositories.
func (r *SeatLedgerRepo) DB() *sql.DB { return r.db }

// normalizeDate truncates a departure date to midnight UTC so that all
// slots for the same travel day compare equal regardless of the time
// component the caller supplied.
func normalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// placeholders returns a comma-separated list of n '?' markers for use
// in IN (...) clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// CheckAvailability reports whether every requested seat is free to
// hold on the given route and date.  A seat conflicts when it is BOOKED
// or BLOCKED, or HELD with a lock that has not yet expired.  The check
// is read-only and advisory: only Hold re-validates under row locks, so
// a caller must be prepared for Hold to fail even after a positive
// availability answer.
func (r *SeatLedgerRepo) CheckAvailability(ctx context.Context, routeID string, date time.Time, seatNumbers []string, now time.Time) (bool, []string, error) {
	if len(seatNumbers) == 0 {
		return true, nil, nil
	}
	date = normalizeDate(date)
	query := `SELECT seat_number FROM booking_seats
	          WHERE route_id = ? AND departure_date = ?
	            AND seat_number IN (` + placeholders(len(seatNumbers)) + `)
	            AND (status IN ('BOOKED','BLOCKED') OR (status = 'HELD' AND locked_until > ?))`
	args := make([]interface{}, 0, len(seatNumbers)+3)
	args = append(args, routeID, date)
	for _, sn := range seatNumbers {
		args = append(args, sn)
	}
	args = append(args, now.UTC())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, nil, err
	}
	defer rows.Close()
	var conflicts []string
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return false, nil, err
		}
		conflicts = append(conflicts, sn)
	}
	if err := rows.Err(); err != nil {
		return false, nil, err
	}
	sort.Strings(conflicts)
	return len(conflicts) == 0, conflicts, nil
}

// Hold atomically claims every named seat for holdID until now+ttl.
// The batch is all-or-nothing: conflicts are re-checked under row locks
// and if any seat is taken no seat in the batch is mutated; the
// returned SeatsUnavailableError lists every conflicting seat.
// Re-issuing Hold with the same holdID on seats it already holds is
// idempotent and refreshes the lock deadline.  Expired holds by other
// parties do not block and are overwritten in place.  The price is
// snapshotted on each slot for later total calculation.
//
// Two concurrent first-time holds on the same free seat both pass the
// locked re-check (no row exists yet, so the gap locks do not exclude
// each other) and collide at INSERT, where the loser gets a duplicate
// key or deadlock error rather than a row conflict.  Hold retries the
// transaction once in that case; the second pass sees the winner's
// committed row and reports a proper SeatsUnavailableError.
func (r *SeatLedgerRepo) Hold(ctx context.Context, routeID string, date time.Time, seatNumbers []string, holdID string, price int64, now time.Time, ttl time.Duration) ([]model.SeatSlot, error) {
	if len(seatNumbers) == 0 {
		return nil, nil
	}
	date = normalizeDate(date)
	now = now.UTC()

	slots, err := r.holdTx(ctx, routeID, date, seatNumbers, holdID, price, now, ttl)
	if err != nil && retryableHoldError(err) {
		slots, err = r.holdTx(ctx, routeID, date, seatNumbers, holdID, price, now, ttl)
	}
	return slots, err
}

func (r *SeatLedgerRepo) holdTx(ctx context.Context, routeID string, date time.Time, seatNumbers []string, holdID string, price int64, now time.Time, ttl time.Duration) ([]model.SeatSlot, error) {
	lockedUntil := now.Add(ttl)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock every existing row for the requested seats.  FOR UPDATE
	// serializes concurrent holds touching any of these slots.
	query := `SELECT id, seat_number, status, hold_id, locked_until FROM booking_seats
	          WHERE route_id = ? AND departure_date = ?
	            AND seat_number IN (` + placeholders(len(seatNumbers)) + `)
	          FOR UPDATE`
	args := make([]interface{}, 0, len(seatNumbers)+2)
	args = append(args, routeID, date)
	for _, sn := range seatNumbers {
		args = append(args, sn)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	type lockedRow struct {
		id          uint64
		status      string
		holdID      sql.NullString
		lockedUntil sql.NullTime
	}
	existing := make(map[string]lockedRow, len(seatNumbers))
	for rows.Next() {
		var sn string
		var lr lockedRow
		if scanErr := rows.Scan(&lr.id, &sn, &lr.status, &lr.holdID, &lr.lockedUntil); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		existing[sn] = lr
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	// Re-validate conflicts with the rows locked.  BOOKED and BLOCKED
	// always conflict; HELD conflicts only when owned by a different
	// hold whose lock is still live.
	var conflicts []string
	for _, sn := range seatNumbers {
		lr, ok := existing[sn]
		if !ok {
			continue
		}
		switch lr.status {
		case model.SeatStatusBooked, model.SeatStatusBlocked:
			conflicts = append(conflicts, sn)
		case model.SeatStatusHeld:
			if lr.holdID.String != holdID && lr.lockedUntil.Valid && lr.lockedUntil.Time.After(now) {
				conflicts = append(conflicts, sn)
			}
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &model.SeatsUnavailableError{Conflicts: conflicts}
	}

	// Overwrite reusable rows (same hold, or an expired hold from
	// another party) and insert the rest in one statement.
	var inserts []string
	for _, sn := range seatNumbers {
		lr, ok := existing[sn]
		if !ok {
			inserts = append(inserts, sn)
			continue
		}
		const upd = `UPDATE booking_seats
		             SET status = 'HELD', hold_id = ?, booking_id = NULL, price = ?, locked_at = ?, locked_until = ?
		             WHERE id = ?`
		if _, err = tx.ExecContext(ctx, upd, holdID, price, now, lockedUntil, lr.id); err != nil {
			return nil, err
		}
	}
	if len(inserts) > 0 {
		ins := `INSERT INTO booking_seats (route_id, departure_date, seat_number, status, hold_id, price, locked_at, locked_until) VALUES `
		insArgs := make([]interface{}, 0, len(inserts)*8)
		for i, sn := range inserts {
			if i > 0 {
				ins += ","
			}
			ins += "(?, ?, ?, 'HELD', ?, ?, ?, ?)"
			insArgs = append(insArgs, routeID, date, sn, holdID, price, now, lockedUntil)
		}
		if _, err = tx.ExecContext(ctx, ins, insArgs...); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	slots := make([]model.SeatSlot, 0, len(seatNumbers))
	hid := holdID
	la, lu := now, lockedUntil
	for _, sn := range seatNumbers {
		slots = append(slots, model.SeatSlot{
			RouteID:       routeID,
			DepartureDate: date,
			SeatNumber:    sn,
			Status:        model.SeatStatusHeld,
			HoldID:        &hid,
			Price:         price,
			LockedAt:      &la,
			LockedUntil:   &lu,
		})
	}
	return slots, nil
}

// AttachBooking links every seat currently HELD under holdID to the
// given booking so that booking-scoped release works while the booking
// is still PENDING.  It returns the number of seats linked.
func (r *SeatLedgerRepo) AttachBooking(ctx context.Context, holdID, bookingID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE booking_seats SET booking_id = ? WHERE hold_id = ? AND status = 'HELD'`,
		bookingID, holdID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Confirm transitions every seat HELD under holdID with a still-live
// lock to BOOKED, attaching bookingID and clearing the hold fields.
// Seats whose hold already expired are deliberately left alone: another
// party may have re-allocated them, so confirmation must never
// resurrect an expired hold.  The caller must compare the returned
// count against the booking's seat count and treat a mismatch as a
// fatal inconsistency.
func (r *SeatLedgerRepo) Confirm(ctx context.Context, holdID, bookingID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE booking_seats
		 SET status = 'BOOKED', booking_id = ?, hold_id = NULL, locked_at = NULL, locked_until = NULL
		 WHERE hold_id = ? AND status = 'HELD' AND locked_until > ?`,
		bookingID, holdID, now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Release frees all seats currently HELD under holdID regardless of
// expiry.  It is used for explicit release of a hold before any booking
// was confirmed.  Returns the number of seats freed.
func (r *SeatLedgerRepo) Release(ctx context.Context, holdID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE hold_id = ? AND status = 'HELD'`,
		holdID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseByBooking frees all seats tied to bookingID, whether still
// HELD under the booking's hold or already BOOKED.  Used when a booking
// is cancelled or expired.  Returns the number of seats freed.
func (r *SeatLedgerRepo) ReleaseByBooking(ctx context.Context, bookingID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE booking_id = ? AND status IN ('HELD','BOOKED')`,
		bookingID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseHeldByBooking frees only the seats still HELD for bookingID,
// leaving BOOKED rows untouched.  The expiry job releases through this
// method so a confirmation that committed between its stale listing
// and the release keeps the seats it converted; cancellation uses
// ReleaseByBooking, which removes BOOKED rows too.
func (r *SeatLedgerRepo) ReleaseHeldByBooking(ctx context.Context, bookingID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE booking_id = ? AND status = 'HELD'`,
		bookingID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepExpired frees every seat whose hold deadline has passed,
// regardless of which hold owns it.  It is safe to run concurrently
// with itself and with all other ledger operations: a seat freed or
// re-held in the meantime simply no longer matches the predicate.
// Returns the number of seats freed.
func (r *SeatLedgerRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE status = 'HELD' AND locked_until <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByRouteAndDate returns every occupied slot for a route and date,
// ordered by seat number.  Slots whose hold has expired are included;
// callers that need the logical view should filter with SeatSlot.Live.
func (r *SeatLedgerRepo) ListByRouteAndDate(ctx context.Context, routeID string, date time.Time) ([]model.SeatSlot, error) {
	date = normalizeDate(date)
	const q = `SELECT id, route_id, departure_date, seat_number, status, hold_id, booking_id, price, locked_at, locked_until
	           FROM booking_seats
	           WHERE route_id = ? AND departure_date = ?
	           ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, routeID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []model.SeatSlot
	for rows.Next() {
		var s model.SeatSlot
		var holdID, bookingID sql.NullString
		var lockedAt, lockedUntil sql.NullTime
		if err := rows.Scan(&s.ID, &s.RouteID, &s.DepartureDate, &s.SeatNumber, &s.Status, &holdID, &bookingID, &s.Price, &lockedAt, &lockedUntil); err != nil {
			return nil, err
		}
		if holdID.Valid {
			v := holdID.String
			s.HoldID = &v
		}
		if bookingID.Valid {
			v := bookingID.String
			s.BookingID = &v
		}
		if lockedAt.Valid {
			t := lockedAt.Time
			s.LockedAt = &t
		}
		if lockedUntil.Valid {
			t := lockedUntil.Time
			s.LockedUntil = &t
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
