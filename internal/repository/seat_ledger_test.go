package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
)

var (
	ledgerNow  = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledgerDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
)

func TestSeatLedgerHold(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	t.Run("holds a batch of free seats", func(t *testing.T) {
		slots, err := repo.Hold(ctx, "r1", ledgerDate, []string{"A1", "A2"}, "hold-1", 250_000, ledgerNow, 15*time.Minute)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		for _, s := range slots {
			assert.Equal(t, model.SeatStatusHeld, s.Status)
			assert.Equal(t, int64(250_000), s.Price)
		}

		available, conflicts, err := repo.CheckAvailability(ctx, "r1", ledgerDate, []string{"A1", "A2"}, ledgerNow)
		require.NoError(t, err)
		assert.False(t, available)
		assert.Equal(t, []string{"A1", "A2"}, conflicts)
	})

	t.Run("overlapping hold fails whole batch with every conflict listed", func(t *testing.T) {
		_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"A2", "A3"}, "hold-2", 250_000, ledgerNow, 15*time.Minute)
		var unavailable *model.SeatsUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []string{"A2"}, unavailable.Conflicts)

		// the free seat in the failed batch stayed free
		available, _, err := repo.CheckAvailability(ctx, "r1", ledgerDate, []string{"A3"}, ledgerNow)
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("same hold refreshes its own deadline", func(t *testing.T) {
		slots, err := repo.Hold(ctx, "r1", ledgerDate, []string{"A1", "A2"}, "hold-1", 250_000, ledgerNow.Add(5*time.Minute), 15*time.Minute)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, ledgerNow.Add(20*time.Minute), slots[0].LockedUntil.UTC())
	})

	t.Run("expired hold by another party is overwritten", func(t *testing.T) {
		later := ledgerNow.Add(time.Hour)
		slots, err := repo.Hold(ctx, "r1", ledgerDate, []string{"A1"}, "hold-9", 300_000, later, 15*time.Minute)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		require.NotNil(t, slots[0].HoldID)
		assert.Equal(t, "hold-9", *slots[0].HoldID)
	})

	t.Run("same seat number on another date does not conflict", func(t *testing.T) {
		otherDate := ledgerDate.AddDate(0, 0, 1)
		_, err := repo.Hold(ctx, "r1", otherDate, []string{"A1"}, "hold-3", 250_000, ledgerNow, 15*time.Minute)
		require.NoError(t, err)
	})
}

func TestSeatLedgerConfirm(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"B1", "B2"}, "hold-1", 250_000, ledgerNow, 15*time.Minute)
	require.NoError(t, err)
	_, err = repo.AttachBooking(ctx, "hold-1", "booking-1")
	require.NoError(t, err)

	t.Run("converts live held seats to booked", func(t *testing.T) {
		n, err := repo.Confirm(ctx, "hold-1", "booking-1", ledgerNow.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		slots, err := repo.ListByRouteAndDate(ctx, "r1", ledgerDate)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		for _, s := range slots {
			assert.Equal(t, model.SeatStatusBooked, s.Status)
			assert.Nil(t, s.HoldID)
			require.NotNil(t, s.BookingID)
			assert.Equal(t, "booking-1", *s.BookingID)
		}
	})

	t.Run("never resurrects an expired hold", func(t *testing.T) {
		_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"B3"}, "hold-2", 250_000, ledgerNow, time.Minute)
		require.NoError(t, err)

		n, err := repo.Confirm(ctx, "hold-2", "booking-2", ledgerNow.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("release by booking frees booked seats", func(t *testing.T) {
		n, err := repo.ReleaseByBooking(ctx, "booking-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		available, _, err := repo.CheckAvailability(ctx, "r1", ledgerDate, []string{"B1", "B2"}, ledgerNow)
		require.NoError(t, err)
		assert.True(t, available)
	})
}

func TestSeatLedgerSweep(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"C1"}, "hold-1", 250_000, ledgerNow, time.Minute)
	require.NoError(t, err)
	_, err = repo.Hold(ctx, "r1", ledgerDate, []string{"C2"}, "hold-2", 250_000, ledgerNow, time.Hour)
	require.NoError(t, err)

	n, err := repo.SweepExpired(ctx, ledgerNow.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	slots, err := repo.ListByRouteAndDate(ctx, "r1", ledgerDate)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "C2", slots[0].SeatNumber)
}

func TestSeatLedgerRelease(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"D1", "D2"}, "hold-1", 250_000, ledgerNow, 15*time.Minute)
	require.NoError(t, err)

	n, err := repo.Release(ctx, "hold-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// releasing again is a no-op
	n, err = repo.Release(ctx, "hold-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSeatLedgerReleaseHeldByBooking(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	_, err := repo.Hold(ctx, "r1", ledgerDate, []string{"G1", "G2"}, "hold-1", 250_000, ledgerNow, 15*time.Minute)
	require.NoError(t, err)
	_, err = repo.AttachBooking(ctx, "hold-1", "booking-1")
	require.NoError(t, err)
	_, err = repo.Confirm(ctx, "hold-1", "booking-1", ledgerNow.Add(time.Minute))
	require.NoError(t, err)

	_, err = repo.Hold(ctx, "r1", ledgerDate, []string{"G3"}, "hold-2", 250_000, ledgerNow, 15*time.Minute)
	require.NoError(t, err)
	_, err = repo.AttachBooking(ctx, "hold-2", "booking-2")
	require.NoError(t, err)

	// booked seats are out of reach for the held-only release
	n, err := repo.ReleaseHeldByBooking(ctx, "booking-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	slots, err := repo.ListByRouteAndDate(ctx, "r1", ledgerDate)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	// a pending booking's held seats are freed
	n, err = repo.ReleaseHeldByBooking(ctx, "booking-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSeatLedgerConcurrentHolds(t *testing.T) {
	db := testDB(t)
	repo := NewSeatLedgerRepo(db)
	ctx := context.Background()

	t.Run("disjoint first-time holds all succeed", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				seat := fmt.Sprintf("H%d", i+1)
				_, errs[i] = repo.Hold(ctx, "r1", ledgerDate, []string{seat}, fmt.Sprintf("hold-d%d", i), 250_000, ledgerNow, 15*time.Minute)
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			assert.NoErrorf(t, err, "hold %d", i)
		}
	})

	// No row exists yet for a first-time seat, so two racing holds only
	// collide at INSERT.  The loser must still come back as a seat
	// conflict, never as a raw duplicate key or deadlock error.
	t.Run("racing first-time holds leave one winner and one conflict", func(t *testing.T) {
		for round := 0; round < 5; round++ {
			seat := fmt.Sprintf("J%d", round+1)
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					holdID := fmt.Sprintf("hold-%d-%d", round, i)
					_, errs[i] = repo.Hold(ctx, "r1", ledgerDate, []string{seat}, holdID, 250_000, ledgerNow, 15*time.Minute)
				}(i)
			}
			wg.Wait()

			winners := 0
			for _, err := range errs {
				if err == nil {
					winners++
					continue
				}
				var unavailable *model.SeatsUnavailableError
				require.ErrorAs(t, err, &unavailable)
				assert.Equal(t, []string{seat}, unavailable.Conflicts)
			}
			assert.Equal(t, 1, winners)
		}
	})
}
