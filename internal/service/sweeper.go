package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BenWork17/Vexeviet-BE/internal/clock"
	"github.com/BenWork17/Vexeviet-BE/internal/utils"
)

// Sweeper periodically reclaims expired seat holds and expires stale
// PENDING bookings.  It is the only writer that moves bookings to
// EXPIRED; client reads never mutate state based on wall-clock time.
type Sweeper struct {
	ledger   SeatLedger
	bookings *BookingService
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration
}

// NewSweeper builds a sweeper ticking at the given interval.
func NewSweeper(ledger SeatLedger, bookings *BookingService, clk clock.Clock, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		bookings: bookings,
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks, sweeping once per interval until ctx is cancelled.  A
// failed sweep is logged and retried on the next tick; the loop never
// exits on error.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("hold sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("hold sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single sweep pass: expired holds first, then
// stale bookings.  Exposed for tests and for an eager sweep at startup.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	swept, err := s.ledger.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error("hold sweep failed", zap.Error(err))
	} else if swept > 0 {
		utils.SeatsSweptTotal.Add(float64(swept))
		s.logger.Info("released expired seat holds", zap.Int64("seats", swept))
	}

	expired, err := s.bookings.ExpirePendingBookings(ctx)
	if err != nil {
		s.logger.Error("booking expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired stale bookings", zap.Int("bookings", expired))
	}
}
