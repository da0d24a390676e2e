package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"repairconnect/internal/domain"
	"repairconnect/internal/models"

	"github.com/rs/zerolog"
)

// FailoverRecordStore serves from the primary store and falls back to a
// secondary one when the primary errors out. NotFound is a domain answer,
// not a failure, and never triggers failover.
type FailoverRecordStore struct {
	primary   domain.RecordStore
	fallback  domain.RecordStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverRecordStore(primary, fallback domain.RecordStore, logger *zerolog.Logger) *FailoverRecordStore {
	return &FailoverRecordStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverRecordStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary record store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

// primaryUsable reports whether the primary should be tried. After a
// failure the primary is retried at most once a minute.
func (r *FailoverRecordStore) primaryUsable() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	if time.Since(last) > time.Minute {
		r.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (r *FailoverRecordStore) recovered() {
	if r.isDown.Load() {
		r.logger.Info().Msg("Primary record store recovered")
		r.isDown.Store(false)
	}
}

func failoverWorthy(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyExists)
}

func (r *FailoverRecordStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if r.primaryUsable() {
		err := r.primary.CreateBooking(ctx, booking)
		if !failoverWorthy(err) {
			r.recovered()
			return err
		}
		r.markDown(err)
	}
	return r.fallback.CreateBooking(ctx, booking)
}

func (r *FailoverRecordStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if r.primaryUsable() {
		booking, err := r.primary.GetBooking(ctx, id)
		if !failoverWorthy(err) {
			r.recovered()
			return booking, err
		}
		r.markDown(err)
	}
	return r.fallback.GetBooking(ctx, id)
}

func (r *FailoverRecordStore) UpdateBookingStatus(ctx context.Context, id string, status string) (*models.Booking, error) {
	if r.primaryUsable() {
		booking, err := r.primary.UpdateBookingStatus(ctx, id, status)
		if !failoverWorthy(err) {
			r.recovered()
			return booking, err
		}
		r.markDown(err)
	}
	return r.fallback.UpdateBookingStatus(ctx, id, status)
}

func (r *FailoverRecordStore) AppendMessage(ctx context.Context, message *models.Message) error {
	if r.primaryUsable() {
		err := r.primary.AppendMessage(ctx, message)
		if !failoverWorthy(err) {
			r.recovered()
			return err
		}
		r.markDown(err)
	}
	return r.fallback.AppendMessage(ctx, message)
}

func (r *FailoverRecordStore) ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error) {
	if r.primaryUsable() {
		messages, err := r.primary.ListMessages(ctx, bookingID)
		if !failoverWorthy(err) {
			r.recovered()
			return messages, err
		}
		r.markDown(err)
	}
	return r.fallback.ListMessages(ctx, bookingID)
}

func (r *FailoverRecordStore) CreateRating(ctx context.Context, rating *models.Rating) error {
	if r.primaryUsable() {
		err := r.primary.CreateRating(ctx, rating)
		if !failoverWorthy(err) {
			r.recovered()
			return err
		}
		r.markDown(err)
	}
	return r.fallback.CreateRating(ctx, rating)
}

func (r *FailoverRecordStore) ListRatingsByMechanic(ctx context.Context, mechanicID string) ([]*models.Rating, error) {
	if r.primaryUsable() {
		ratings, err := r.primary.ListRatingsByMechanic(ctx, mechanicID)
		if !failoverWorthy(err) {
			r.recovered()
			return ratings, err
		}
		r.markDown(err)
	}
	return r.fallback.ListRatingsByMechanic(ctx, mechanicID)
}

func (r *FailoverRecordStore) SeedMechanics(ctx context.Context, mechanics []*models.Mechanic) error {
	// Seed both so the fallback can serve the catalog during an outage.
	if err := r.fallback.SeedMechanics(ctx, mechanics); err != nil {
		return err
	}
	if r.primaryUsable() {
		if err := r.primary.SeedMechanics(ctx, mechanics); err != nil {
			r.markDown(err)
			return nil
		}
		r.recovered()
	}
	return nil
}

func (r *FailoverRecordStore) ListMechanics(ctx context.Context) ([]*models.Mechanic, error) {
	if r.primaryUsable() {
		mechanics, err := r.primary.ListMechanics(ctx)
		if !failoverWorthy(err) {
			r.recovered()
			return mechanics, err
		}
		r.markDown(err)
	}
	return r.fallback.ListMechanics(ctx)
}

func (r *FailoverRecordStore) Ping(ctx context.Context) error {
	if err := r.primary.Ping(ctx); err != nil {
		return r.fallback.Ping(ctx)
	}
	return nil
}
