package repository

import (
	"context"
	"testing"

	"repairconnect/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFailoverStore(t *testing.T) (*FailoverRecordStore, *miniredis.Miniredis, *MemoryRecordStore) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	fallback := NewMemoryRecordStore()
	store := NewFailoverRecordStore(NewRedisRecordStore(client), fallback, &logger)
	return store, s, fallback
}

func TestFailoverRecordStore(t *testing.T) {
	ctx := context.Background()

	t.Run("PrimaryHealthy", func(t *testing.T) {
		store, _, fallback := newFailoverStore(t)

		booking := &models.Booking{MechanicID: "1", Service: "Battery"}
		require.NoError(t, store.CreateBooking(ctx, booking))

		got, err := store.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, "Battery", got.Service)

		// Nothing should have landed in the fallback.
		_, err = fallback.GetBooking(ctx, booking.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("NotFoundDoesNotFailover", func(t *testing.T) {
		store, _, _ := newFailoverStore(t)

		_, err := store.GetBooking(ctx, "booking:0")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, store.isDown.Load())
	})

	t.Run("FallsBackWhenPrimaryDown", func(t *testing.T) {
		store, s, _ := newFailoverStore(t)
		s.Close()

		booking := &models.Booking{MechanicID: "2", Service: "Suspension"}
		require.NoError(t, store.CreateBooking(ctx, booking))
		assert.True(t, store.isDown.Load())

		// Subsequent reads are served from the fallback.
		got, err := store.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, "Suspension", got.Service)
	})

	t.Run("SeedReachesBothStores", func(t *testing.T) {
		store, _, fallback := newFailoverStore(t)

		require.NoError(t, store.SeedMechanics(ctx, []*models.Mechanic{{ID: "1", Name: "Colombo Auto Care"}}))

		fromFallback, err := fallback.ListMechanics(ctx)
		require.NoError(t, err)
		assert.Len(t, fromFallback, 1)

		fromStore, err := store.ListMechanics(ctx)
		require.NoError(t, err)
		assert.Len(t, fromStore, 1)
	})
}
