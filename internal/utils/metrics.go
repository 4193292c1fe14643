package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed",
	})

	BookingsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of bookings cancelled",
	})

	BookingsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_expired_total",
		Help: "Total number of PENDING bookings expired by the background job",
	})

	SeatHoldsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_holds_total",
		Help: "Total number of successful seat hold batches",
	})

	SeatHoldConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_hold_conflicts_total",
		Help: "Total number of hold attempts rejected because of seat conflicts",
	})

	SeatsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seats_swept_total",
		Help: "Total number of expired seat holds reclaimed by the sweeper",
	})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idempotent_replays_total",
		Help: "Total number of booking requests answered from an idempotency record",
	})
)
