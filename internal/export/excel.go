// Package export renders archived booking data as Excel reports.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"repairconnect/internal/archive"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Completed Bookings"

type Exporter struct {
	archive *archive.Archive
	path    string
	log     zerolog.Logger
}

func NewExporter(a *archive.Archive, path string, logger *zerolog.Logger) *Exporter {
	e := &Exporter{archive: a, path: path}
	if logger != nil {
		e.log = logger.With().Str("component", "export").Logger()
	}
	return e
}

// ExportBookings writes completed bookings for the date range to a new
// xlsx file and returns its path. Dates are formatted 2006-01-02.
func (e *Exporter) ExportBookings(ctx context.Context, startDate, endDate string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bookings, err := e.archive.ListByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting archived bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Period: %s - %s", startDate, endDate))

	headers := []string{
		"Booking ID", "Mechanic", "Service", "Date", "Time",
		"Vehicle", "Year", "Issue",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 2)
	_ = f.SetCellStyle(bookingsSheet, "A2", lastHeader, headerStyle)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.MergeCell(bookingsSheet, "A1", lastHeader[:1]+"1")
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	for i, booking := range bookings {
		row := i + 3
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("A%d", row), booking.ID)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("B%d", row), booking.MechanicID)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("C%d", row), booking.Service)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("D%d", row), booking.Date)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("E%d", row), booking.Time)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("F%d", row), booking.Vehicle.Make+" "+booking.Vehicle.Model)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("G%d", row), booking.Vehicle.Year)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("H%d", row), booking.Vehicle.Issue)
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 22)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 20)
	_ = f.SetColWidth(bookingsSheet, "D", "E", 12)
	_ = f.SetColWidth(bookingsSheet, "F", "H", 18)

	if err := e.writeMechanicSummary(ctx, f); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s_%s.xlsx",
		startDate, endDate, time.Now().Format("20060102_150405"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.log.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel report created")
	return filePath, nil
}

func (e *Exporter) writeMechanicSummary(ctx context.Context, f *excelize.File) error {
	counts, err := e.archive.CountByMechanic(ctx)
	if err != nil {
		return fmt.Errorf("error getting mechanic counts: %w", err)
	}

	const sheet = "By Mechanic"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating summary sheet: %w", err)
	}

	_ = f.SetCellValue(sheet, "A1", "Mechanic")
	_ = f.SetCellValue(sheet, "B1", "Completed")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheet, "A1", "B1", headerStyle)

	row := 2
	for mechanicID, count := range counts {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), mechanicID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), count)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "B", 12)
	return nil
}
