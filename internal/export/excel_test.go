package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"repairconnect/internal/archive"
	"repairconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportBookings(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	a, err := archive.New(filepath.Join(tempDir, "archive.db"), nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.SaveBooking(ctx, &models.Booking{
		ID:         "booking:1",
		MechanicID: "m-1",
		Service:    "Oil Change",
		Date:       "2026-08-15",
		Time:       "09:00",
		Vehicle:    models.Vehicle{Make: "Honda", Model: "Civic", Year: "2020", Issue: "routine"},
	}, time.Now()))
	require.NoError(t, a.SaveBooking(ctx, &models.Booking{
		ID:         "booking:2",
		MechanicID: "m-1",
		Service:    "Brake Repair",
		Date:       "2026-08-16",
		Time:       "14:00",
		Vehicle:    models.Vehicle{Make: "Ford", Model: "Focus", Year: "2018", Issue: "squeaking"},
	}, time.Now()))

	exporter := NewExporter(a, filepath.Join(tempDir, "exports"), nil)

	filePath, err := exporter.ExportBookings(ctx, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	require.FileExists(t, filePath)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.GetCellValue(bookingsSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "booking:1", id)

	service, err := f.GetCellValue(bookingsSheet, "C4")
	require.NoError(t, err)
	assert.Equal(t, "Brake Repair", service)

	vehicle, err := f.GetCellValue(bookingsSheet, "F3")
	require.NoError(t, err)
	assert.Equal(t, "Honda Civic", vehicle)

	mechanic, err := f.GetCellValue("By Mechanic", "A2")
	require.NoError(t, err)
	assert.Equal(t, "m-1", mechanic)
	count, err := f.GetCellValue("By Mechanic", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestExportEmptyRange(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	a, err := archive.New(filepath.Join(tempDir, "archive.db"), nil)
	require.NoError(t, err)
	defer a.Close()

	exporter := NewExporter(a, filepath.Join(tempDir, "exports"), nil)

	filePath, err := exporter.ExportBookings(ctx, "2020-01-01", "2020-01-31")
	require.NoError(t, err)
	assert.FileExists(t, filePath)
}
