package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration-valued settings
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Connection settings are required and
// enforced by must(); booking policy knobs carry the platform defaults
// and can be overridden per environment.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens

	BookingCodePrefix  string        // prefix for human-facing booking codes
	MaxSeatsPerBooking int           // upper bound on seats in one booking
	HoldTTL            time.Duration // default lifetime of a seat hold
	MinHoldTTL         time.Duration // lower clamp bound for caller-supplied TTLs
	MaxHoldTTL         time.Duration // upper clamp bound for caller-supplied TTLs
	PaymentWindow      time.Duration // time a PENDING booking has to be paid
	IdempotencyTTL     time.Duration // retention window for idempotency keys
	SweepInterval      time.Duration // period between background sweeps
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Load also enforces
// the policy invariant that the hold TTL covers the payment window: a
// seat must never be swept out from under a PENDING booking that is
// still inside its own deadline.
func Load() Config {
	cfg := Config{
		Env:       must("APP_ENV"),      // environment (dev/test/prod)
		Port:      must("APP_PORT"),     // port to bind the HTTP server
		DBUser:    must("DB_USER"),      // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    must("DB_HOST"),      // database host
		DBPort:    must("DB_PORT"),      // database port
		DBName:    must("DB_NAME"),      // database name
		JWTSecret: must("JWT_SECRET"),   // secret used for verifying JWTs

		BookingCodePrefix:  getenv("BOOKING_CODE_PREFIX", "VXV"),
		MaxSeatsPerBooking: atoi(getenv("MAX_SEATS_PER_BOOKING", "10")),
		HoldTTL:            parseDur(getenv("SEAT_HOLD_TTL", "900s")),
		MinHoldTTL:         parseDur(getenv("SEAT_HOLD_TTL_MIN", "60s")),
		MaxHoldTTL:         parseDur(getenv("SEAT_HOLD_TTL_MAX", "1800s")),
		PaymentWindow:      parseDur(getenv("PAYMENT_DEADLINE", "15m")),
		IdempotencyTTL:     parseDur(getenv("IDEMPOTENCY_KEY_TTL", "24h")),
		SweepInterval:      parseDur(getenv("SWEEP_INTERVAL", "30s")),
	}
	if cfg.MaxSeatsPerBooking <= 0 {
		log.Fatalf("MAX_SEATS_PER_BOOKING must be positive, got %d", cfg.MaxSeatsPerBooking)
	}
	if cfg.MinHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		log.Fatalf("invalid hold TTL bounds: min=%s max=%s", cfg.MinHoldTTL, cfg.MaxHoldTTL)
	}
	if cfg.HoldTTL < cfg.MinHoldTTL || cfg.HoldTTL > cfg.MaxHoldTTL {
		log.Fatalf("SEAT_HOLD_TTL %s outside bounds [%s, %s]", cfg.HoldTTL, cfg.MinHoldTTL, cfg.MaxHoldTTL)
	}
	if cfg.HoldTTL < cfg.PaymentWindow {
		log.Fatalf("SEAT_HOLD_TTL %s must be >= PAYMENT_DEADLINE %s", cfg.HoldTTL, cfg.PaymentWindow)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the value of an environment variable or a default when
// the variable is unset or empty.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration: %q", s)
	}
	return d
}
