package config

import (
	"os"
	"strings"
	"time"
)

// CacheConfig controls the Redis-backed response cache on the seat
// availability listing.  The TTL must stay short: a cached occupancy
// view is stale the moment a hold lands, so the cache only absorbs
// bursts of identical reads during peak sale windows.
type CacheConfig struct {
	Enabled bool          // SEAT_CACHE_ENABLED, default off
	TTL     time.Duration // SEAT_CACHE_TTL, default 3s
	Prefix  string        // key prefix in Redis
}

// LoadCache reads the seat cache settings from environment variables.
func LoadCache() CacheConfig {
	enabled := false
	if v := os.Getenv("SEAT_CACHE_ENABLED"); strings.EqualFold(v, "true") || v == "1" {
		enabled = true
	}
	ttl := 3 * time.Second
	if v := os.Getenv("SEAT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}
	return CacheConfig{
		Enabled: enabled,
		TTL:     ttl,
		Prefix:  "vexeviet:booking:seatcache",
	}
}
