package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
)

// idemKeyPrefix namespaces idempotency records in Redis alongside the
// other booking-service keys.
const idemKeyPrefix = "vexeviet:booking:idem:"

// inflightMarker is stored while the first request with a key is still
// creating its booking; completed records store the booking ID instead.
const inflightMarker = "__inflight__"

// RedisIdempotency implements the idempotency guard on Redis.  A
// client-supplied key maps to at most one booking: the first request
// claims the key with SET NX and an in-flight marker, every retry
// either gets the recorded booking ID back or, while the first request
// is still executing, waits briefly and then fails retryable.  Records
// expire after the retention window independent of the booking's
// lifecycle, since keys identify a single submission attempt.
type RedisIdempotency struct {
	rdb          *redis.Client
	retention    time.Duration // how long completed records are kept (e.g. 24h)
	inflightTTL  time.Duration // lease on the in-flight marker
	waitTimeout  time.Duration // bounded wait on an in-flight duplicate
	pollInterval time.Duration // re-read period during the wait
}

// NewRedisIdempotency builds a guard with the given retention window.
// The in-flight lease carries its own short TTL: if the process dies
// between claiming the key and Complete/Abort, the key frees itself
// after thirty seconds instead of staying wedged for the retention
// window.  The in-flight wait is fixed at two seconds with a 100ms
// poll, which covers the typical hold-plus-insert latency without
// tying up the duplicate request for long.
func NewRedisIdempotency(rdb *redis.Client, retention time.Duration) *RedisIdempotency {
	return &RedisIdempotency{
		rdb:          rdb,
		retention:    retention,
		inflightTTL:  30 * time.Second,
		waitTimeout:  2 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
}

// BeginOrReturn claims the key for this request or resolves what a
// previous request did with it.  Outcomes:
//
//   - key never seen: the key is leased and ("", true, nil) is
//     returned; the caller must eventually call Complete or Abort.
//   - key completed: the recorded booking ID is returned with
//     proceed=false; the caller must not hold seats again.
//   - key in flight: the call polls until the first request completes
//     or the bounded wait expires, then fails with
//     model.ErrIdempotencyInFlight so the client can retry.
func (g *RedisIdempotency) BeginOrReturn(ctx context.Context, key string) (string, bool, error) {
	k := idemKeyPrefix + key
	deadline := time.Now().Add(g.waitTimeout)
	for {
		set, err := g.rdb.SetNX(ctx, k, inflightMarker, g.inflightTTL).Result()
		if err != nil {
			return "", false, err
		}
		if set {
			return "", true, nil
		}
		val, err := g.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// The lease vanished between SETNX and GET: the first
			// request aborted.  Try to claim it ourselves.
			continue
		}
		if err != nil {
			return "", false, err
		}
		if val != inflightMarker {
			return val, false, nil
		}
		if time.Now().After(deadline) {
			return "", false, model.ErrIdempotencyInFlight
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
}

// Complete records the booking produced under the key.  The retention
// window restarts so retries keep resolving for the full window after
// the booking was actually created.
func (g *RedisIdempotency) Complete(ctx context.Context, key, bookingID string) error {
	return g.rdb.Set(ctx, idemKeyPrefix+key, bookingID, g.retention).Err()
}

// Abort drops the in-flight lease after a failed creation so the client
// can retry with the same key.
func (g *RedisIdempotency) Abort(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, idemKeyPrefix+key).Err()
}
