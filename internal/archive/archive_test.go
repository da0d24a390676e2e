package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"repairconnect/internal/events"
	"repairconnect/internal/models"
	"repairconnect/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(filepath.Join(t.TempDir(), "archive.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleBooking(id, mechanicID, date string) *models.Booking {
	return &models.Booking{
		ID:         id,
		MechanicID: mechanicID,
		Service:    "Engine Diagnostics",
		Date:       date,
		Time:       "10:00",
		Vehicle:    models.Vehicle{Make: "Toyota", Model: "Corolla", Year: "2019", Issue: "warning light"},
		Status:     models.StatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestArchive(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	t.Run("SaveAndList", func(t *testing.T) {
		require.NoError(t, a.SaveBooking(ctx, sampleBooking("booking:1", "m-1", "2026-08-10"), time.Now()))
		require.NoError(t, a.SaveBooking(ctx, sampleBooking("booking:2", "m-2", "2026-08-20"), time.Now()))
		require.NoError(t, a.SaveBooking(ctx, sampleBooking("booking:3", "m-1", "2026-09-01"), time.Now()))

		bookings, err := a.ListByDateRange(ctx, "2026-08-01", "2026-08-31")
		require.NoError(t, err)
		require.Len(t, bookings, 2)
		assert.Equal(t, "booking:1", bookings[0].ID)
		assert.Equal(t, "Toyota", bookings[0].Vehicle.Make)
		assert.Equal(t, models.StatusCompleted, bookings[0].Status)
	})

	t.Run("SaveIsIdempotent", func(t *testing.T) {
		b := sampleBooking("booking:1", "m-1", "2026-08-10")
		require.NoError(t, a.SaveBooking(ctx, b, time.Now()))
		require.NoError(t, a.SaveBooking(ctx, b, time.Now()))

		bookings, err := a.ListByDateRange(ctx, "2026-08-10", "2026-08-10")
		require.NoError(t, err)
		assert.Len(t, bookings, 1)
	})

	t.Run("CountByMechanic", func(t *testing.T) {
		counts, err := a.CountByMechanic(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, counts["m-1"])
		assert.Equal(t, 1, counts["m-2"])
	})

	t.Run("EmptyRange", func(t *testing.T) {
		bookings, err := a.ListByDateRange(ctx, "2020-01-01", "2020-12-31")
		require.NoError(t, err)
		assert.Empty(t, bookings)
	})
}

func TestArchiveAttached(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	store := repository.NewMemoryRecordStore()
	booking := &models.Booking{MechanicID: "m-1", Service: "Brakes", Date: "2026-08-28", Status: models.StatusConfirmed}
	require.NoError(t, store.CreateBooking(ctx, booking))
	_, err := store.UpdateBookingStatus(ctx, booking.ID, models.StatusCompleted)
	require.NoError(t, err)

	bus := events.NewEventBus()
	a.Attach(bus, store)

	require.NoError(t, bus.PublishJSON(events.EventBookingCompleted, events.BookingEventPayload{
		BookingID:  booking.ID,
		MechanicID: booking.MechanicID,
		Status:     models.StatusCompleted,
		ChangedAt:  time.Now().UTC(),
	}))

	archived, err := a.ListByDateRange(ctx, "2026-08-28", "2026-08-28")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, booking.ID, archived[0].ID)
	assert.Equal(t, "Brakes", archived[0].Service)
}
