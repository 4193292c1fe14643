package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/BenWork17/Vexeviet-BE/internal/database"
)

// testDB connects to the MySQL instance named by the DB_* environment
// variables (defaulting to a local dev database) or skips the test when
// none is reachable, so the suite stays runnable without
// infrastructure.  Tables are created on first use and truncated before
// each test.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	db, err := database.Open(
		get("TEST_DB_USER", "root"),
		os.Getenv("TEST_DB_PASS"),
		get("TEST_DB_HOST", "localhost"),
		get("TEST_DB_PORT", "3306"),
		get("TEST_DB_NAME", "vexeviet_test"),
	)
	if err != nil {
		t.Skipf("mysql not reachable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS booking_seats (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			route_id VARCHAR(64) NOT NULL,
			departure_date DATETIME NOT NULL,
			seat_number VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			hold_id VARCHAR(36) NULL,
			booking_id VARCHAR(36) NULL,
			price BIGINT NOT NULL DEFAULT 0,
			locked_at DATETIME(6) NULL,
			locked_until DATETIME(6) NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_slot (route_id, departure_date, seat_number),
			KEY idx_hold (hold_id),
			KEY idx_booking (booking_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id VARCHAR(36) NOT NULL,
			booking_code VARCHAR(16) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			route_id VARCHAR(64) NOT NULL,
			departure_date DATETIME NOT NULL,
			hold_id VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			total_price BIGINT NOT NULL,
			payment_deadline DATETIME(6) NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL,
			confirmed_at DATETIME(6) NULL,
			cancelled_at DATETIME(6) NULL,
			cancellation_reason VARCHAR(255) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_booking_code (booking_code),
			UNIQUE KEY uq_idempotency_key (idempotency_key),
			KEY idx_user (user_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS booking_passengers (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			booking_id VARCHAR(36) NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			seat_number VARCHAR(16) NOT NULL,
			id_number VARCHAR(32) NULL,
			PRIMARY KEY (id),
			KEY idx_passenger_booking (booking_id)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	for _, table := range []string{"booking_seats", "bookings", "booking_passengers"} {
		if _, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return db
}
