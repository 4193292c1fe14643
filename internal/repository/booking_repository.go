package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
)

// BookingRepo provides persistence for bookings and their passengers.
// A booking's committed seat set is stored on the passenger rows (one
// seat per passenger), so it survives the release of the live seat
// slots when the booking is cancelled or expires.  Status transitions
// are conditional updates: the WHERE clause names the expected current
// state, and a zero row count tells the caller it lost a concurrent
// transition race.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// mysqlDuplicateEntry is the server error number for a unique key
// violation.
const mysqlDuplicateEntry = 1062

// Create inserts a booking together with its passenger rows in a single
// transaction.  The booking must arrive with ID, code, hold ID, status
// and deadlines already populated.  A duplicate idempotency key or
// booking code surfaces as model.ErrConflict; the idempotency guard
// normally prevents that path, the unique index is the backstop.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, passengers []model.Passenger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings
	             (id, booking_code, user_id, route_id, departure_date, hold_id, status, total_price, payment_deadline, idempotency_key, created_at, updated_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins,
		b.ID, b.BookingCode, b.UserID, b.RouteID, normalizeDate(b.DepartureDate), b.HoldID,
		b.Status, b.TotalPrice, b.PaymentDeadline.UTC(), b.IdempotencyKey,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return fmt.Errorf("booking already exists: %w", model.ErrConflict)
		}
		return err
	}

	if len(passengers) > 0 {
		q := `INSERT INTO booking_passengers (booking_id, first_name, last_name, seat_number, id_number) VALUES `
		args := make([]interface{}, 0, len(passengers)*5)
		for i, p := range passengers {
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?)"
			args = append(args, b.ID, p.FirstName, p.LastName, p.SeatNumber, p.IDNumber)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const bookingColumns = `id, booking_code, user_id, route_id, departure_date, hold_id, status, total_price, payment_deadline, idempotency_key, confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

// scanBooking reads one booking row from the given scanner.
func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	var confirmedAt, cancelledAt sql.NullTime
	var reason sql.NullString
	err := row.Scan(
		&b.ID, &b.BookingCode, &b.UserID, &b.RouteID, &b.DepartureDate, &b.HoldID,
		&b.Status, &b.TotalPrice, &b.PaymentDeadline, &b.IdempotencyKey,
		&confirmedAt, &cancelledAt, &reason, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	if reason.Valid {
		s := reason.String
		b.CancellationReason = &s
	}
	return &b, nil
}

// loadSeats populates the booking's committed seat set from its
// passenger rows, ordered for deterministic output.
func (r *BookingRepo) loadSeats(ctx context.Context, b *model.Booking) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_number FROM booking_passengers WHERE booking_id = ? ORDER BY seat_number`,
		b.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return err
		}
		b.Seats = append(b.Seats, sn)
	}
	return rows.Err()
}

// GetByID returns a booking with its seat set, or model.ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSeats(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByCode returns a booking looked up by its human-facing code, or
// model.ErrNotFound.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_code = ?`, code)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSeats(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListByUser returns all bookings created by the given user, newest
// first, each with its seat set populated.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		if err := r.loadSeats(ctx, &bookings[i]); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// MarkConfirmed flips a PENDING booking to CONFIRMED.  It reports false
// when the booking was not PENDING anymore, which means a concurrent
// cancel or expiry committed first.
func (r *BookingRepo) MarkConfirmed(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'CONFIRMED', confirmed_at = ?, updated_at = ? WHERE id = ? AND status = 'PENDING'`,
		now.UTC(), now.UTC(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkCancelled flips a PENDING or CONFIRMED booking to CANCELLED with
// the given reason.  It reports false when the booking was already in a
// terminal state.
func (r *BookingRepo) MarkCancelled(ctx context.Context, id string, reason *string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED', cancelled_at = ?, cancellation_reason = ?, updated_at = ?
		 WHERE id = ? AND status IN ('PENDING','CONFIRMED')`,
		now.UTC(), reason, now.UTC(), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkExpired flips a PENDING booking whose payment deadline has passed
// to EXPIRED.  The deadline re-check in the WHERE clause keeps the
// expiry job from ever racing a deadline extension or expiring a
// booking that was confirmed in the meantime.
func (r *BookingRepo) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'EXPIRED', updated_at = ? WHERE id = ? AND status = 'PENDING' AND payment_deadline < ?`,
		now.UTC(), id, now.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListExpiredPending returns up to limit PENDING bookings whose payment
// deadline lies before now, oldest deadline first, with seat sets
// populated so the caller can emit release events.
func (r *BookingRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE status = 'PENDING' AND payment_deadline < ?
		 ORDER BY payment_deadline ASC LIMIT ?`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		if err := r.loadSeats(ctx, &bookings[i]); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}
