package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
)

func newTestBooking(userID, key string) (*model.Booking, []model.Passenger) {
	id := uuid.NewString()
	b := &model.Booking{
		ID:              id,
		BookingCode:     "VXV" + id[:7],
		UserID:          userID,
		RouteID:         "r1",
		DepartureDate:   ledgerDate,
		HoldID:          uuid.NewString(),
		Status:          model.BookingStatusPending,
		Seats:           []string{"A1", "A2"},
		TotalPrice:      500_000,
		PaymentDeadline: ledgerNow.Add(15 * time.Minute),
		IdempotencyKey:  key,
		CreatedAt:       ledgerNow,
		UpdatedAt:       ledgerNow,
	}
	passengers := []model.Passenger{
		{BookingID: id, FirstName: "Nguyen", LastName: "An", SeatNumber: "A1"},
		{BookingID: id, FirstName: "Tran", LastName: "Binh", SeatNumber: "A2"},
	}
	return b, passengers
}

func TestBookingRepoCreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	b, passengers := newTestBooking("user-1", uuid.NewString())
	require.NoError(t, repo.Create(ctx, b, passengers))

	t.Run("get by id restores the seat set", func(t *testing.T) {
		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.BookingCode, got.BookingCode)
		assert.Equal(t, model.BookingStatusPending, got.Status)
		assert.Equal(t, []string{"A1", "A2"}, got.Seats)
		assert.Equal(t, int64(500_000), got.TotalPrice)
	})

	t.Run("get by code", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, b.BookingCode)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("duplicate idempotency key is a conflict", func(t *testing.T) {
		dup, dupPassengers := newTestBooking("user-1", b.IdempotencyKey)
		err := repo.Create(ctx, dup, dupPassengers)
		require.ErrorIs(t, err, model.ErrConflict)
	})

	t.Run("list by user is newest first", func(t *testing.T) {
		second, p2 := newTestBooking("user-1", uuid.NewString())
		second.CreatedAt = ledgerNow.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, second, p2))

		list, err := repo.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
	})
}

func TestBookingRepoTransitions(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	create := func(t *testing.T) *model.Booking {
		t.Helper()
		b, passengers := newTestBooking("user-1", uuid.NewString())
		require.NoError(t, repo.Create(ctx, b, passengers))
		return b
	}

	t.Run("confirm requires pending", func(t *testing.T) {
		b := create(t)
		ok, err := repo.MarkConfirmed(ctx, b.ID, ledgerNow.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)

		// second confirm loses the status race
		ok, err = repo.MarkConfirmed(ctx, b.ID, ledgerNow.Add(2*time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConfirmed, got.Status)
		require.NotNil(t, got.ConfirmedAt)
	})

	t.Run("cancel works from pending and confirmed but not twice", func(t *testing.T) {
		b := create(t)
		reason := "schedule change"
		ok, err := repo.MarkCancelled(ctx, b.ID, &reason, ledgerNow.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkCancelled(ctx, b.ID, &reason, ledgerNow.Add(2*time.Minute))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, got.Status)
		require.NotNil(t, got.CancellationReason)
		assert.Equal(t, reason, *got.CancellationReason)
	})

	t.Run("expire requires pending and a passed deadline", func(t *testing.T) {
		b := create(t)

		// deadline not reached yet
		ok, err := repo.MarkExpired(ctx, b.ID, ledgerNow)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.MarkExpired(ctx, b.ID, ledgerNow.Add(16*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusExpired, got.Status)
	})

	t.Run("expired pending listing honors status and deadline", func(t *testing.T) {
		stale := create(t)
		confirmed := create(t)
		ok, err := repo.MarkConfirmed(ctx, confirmed.ID, ledgerNow)
		require.NoError(t, err)
		require.True(t, ok)

		list, err := repo.ListExpiredPending(ctx, ledgerNow.Add(time.Hour), 10)
		require.NoError(t, err)

		ids := make(map[string]bool, len(list))
		for _, b := range list {
			ids[b.ID] = true
			assert.Equal(t, model.BookingStatusPending, b.Status)
			assert.NotEmpty(t, b.Seats)
		}
		assert.True(t, ids[stale.ID])
		assert.False(t, ids[confirmed.ID])
	})
}
