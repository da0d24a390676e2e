// Package archive persists completed bookings to SQLite for reporting.
// The Redis record store stays the source of truth for live bookings;
// the archive only ever receives terminal ones.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type Archive struct {
	db  *sql.DB
	log zerolog.Logger
}

func New(path string, logger *zerolog.Logger) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	a := &Archive{db: db}
	if logger != nil {
		a.log = logger.With().Str("component", "archive").Logger()
	}
	a.log.Info().Str("path", path).Msg("booking archive initialized")
	return a, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS completed_bookings (
            id TEXT PRIMARY KEY,
            mechanic_id TEXT NOT NULL,
            service TEXT NOT NULL,
            date TEXT,
            time TEXT,
            vehicle_make TEXT,
            vehicle_model TEXT,
            vehicle_year TEXT,
            vehicle_issue TEXT,
            created_at DATETIME,
            completed_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_completed_bookings_mechanic_id ON completed_bookings(mechanic_id)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_bookings_date ON completed_bookings(date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SaveBooking upserts a completed booking. Replaying the same
// completion event is harmless.
func (a *Archive) SaveBooking(ctx context.Context, booking *models.Booking, completedAt time.Time) error {
	query := `INSERT INTO completed_bookings (
				id, mechanic_id, service, date, time,
				vehicle_make, vehicle_model, vehicle_year, vehicle_issue,
				created_at, completed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET completed_at = excluded.completed_at`

	_, err := a.db.ExecContext(ctx, query,
		booking.ID,
		booking.MechanicID,
		booking.Service,
		booking.Date,
		booking.Time,
		booking.Vehicle.Make,
		booking.Vehicle.Model,
		booking.Vehicle.Year,
		booking.Vehicle.Issue,
		booking.CreatedAt,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive booking: %w", err)
	}
	return nil
}

// ListByDateRange returns archived bookings whose service date falls in
// [startDate, endDate], both formatted 2006-01-02.
func (a *Archive) ListByDateRange(ctx context.Context, startDate, endDate string) ([]*models.Booking, error) {
	query := `SELECT id, mechanic_id, service, date, time,
	                 vehicle_make, vehicle_model, vehicle_year, vehicle_issue, created_at
	          FROM completed_bookings
	          WHERE date >= ? AND date <= ?
	          ORDER BY date, time`

	rows, err := a.db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{Status: models.StatusCompleted}
		err := rows.Scan(
			&b.ID, &b.MechanicID, &b.Service, &b.Date, &b.Time,
			&b.Vehicle.Make, &b.Vehicle.Model, &b.Vehicle.Year, &b.Vehicle.Issue,
			&b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CountByMechanic returns completed booking counts keyed by mechanic id.
func (a *Archive) CountByMechanic(ctx context.Context) (map[string]int, error) {
	query := `SELECT mechanic_id, COUNT(*) FROM completed_bookings GROUP BY mechanic_id`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count archived bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mechanicID string
		var count int
		if err := rows.Scan(&mechanicID, &count); err != nil {
			return nil, err
		}
		counts[mechanicID] = count
	}
	return counts, rows.Err()
}

// Attach subscribes the archive to booking completion events. The full
// booking is re-read from the store since the event carries a snapshot
// only.
func (a *Archive) Attach(bus *events.EventBus, store domain.RecordStore) {
	bus.Subscribe(events.EventBookingCompleted, func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		booking, err := store.GetBooking(ctx, payload.BookingID)
		if err != nil {
			a.log.Error().Err(err).Str("booking_id", payload.BookingID).Msg("fetch completed booking")
			return err
		}
		if err := a.SaveBooking(ctx, booking, payload.ChangedAt); err != nil {
			a.log.Error().Err(err).Str("booking_id", payload.BookingID).Msg("archive completed booking")
			return err
		}
		return nil
	})
}

func (a *Archive) Close() error {
	return a.db.Close()
}
