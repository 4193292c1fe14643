package middleware

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/BenWork17/Vexeviet-BE/internal/config"
)

// seatCacheWriter captures the response body while forwarding it to the
// client so a 200 listing can be stored for replay.
type seatCacheWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *seatCacheWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *seatCacheWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// SeatCache returns an Echo middleware that caches successful GET
// responses of the seat availability listing in Redis for a short TTL.
// Occupancy changes the moment a hold lands, so the TTL only smooths
// read bursts on popular routes; correctness still comes from the
// ledger re-checking conflicts under row locks at hold time.  The
// middleware is a no-op when disabled or when Redis is unavailable.
func SeatCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}
			r := c.Request()
			sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
			key := fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])

			if body, err := rdb.Get(r.Context(), key).Bytes(); err == nil {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, body)
			}

			w := &seatCacheWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if w.status == http.StatusOK && w.buf.Len() > 0 {
				// best effort; a failed write just means the next
				// reader hits the database
				_ = rdb.SetEx(r.Context(), key, w.buf.Bytes(), ttl).Err()
			}
			return nil
		}
	}
}
