package domain

import (
	"context"

	"repairconnect/internal/models"
)

// RecordStore owns all persisted booking, chat and rating records. Keys
// are namespaced by record type; records are single-key JSON documents.
type RecordStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status string) (*models.Booking, error)
	ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error)
	AppendMessage(ctx context.Context, message *models.Message) error
	CreateRating(ctx context.Context, rating *models.Rating) error
	ListRatingsByMechanic(ctx context.Context, mechanicID string) ([]*models.Rating, error)
	SeedMechanics(ctx context.Context, mechanics []*models.Mechanic) error
	ListMechanics(ctx context.Context) ([]*models.Mechanic, error)
	Ping(ctx context.Context) error
}

// Directory is the read-only mechanic catalog.
type Directory interface {
	ListMechanics() []*models.Mechanic
	GetMechanic(id string) (*models.Mechanic, bool)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Responder produces the counterpart side of a chat exchange. Implementations
// must be safe for sequential reuse; randomness belongs behind this interface
// so tests can substitute deterministic replies.
type Responder interface {
	Reply(incoming *models.Message) (string, bool)
}

// BookingAPI is the store-client contract consumed by the tracker demo
// and the chat simulator.
type BookingAPI interface {
	CreateBooking(ctx context.Context, req models.Booking) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error)
	ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error)
	SendMessage(ctx context.Context, bookingID string, msg models.Message) (*models.Message, error)
	SubmitRating(ctx context.Context, rating models.Rating) (*models.Rating, error)
	ListRatings(ctx context.Context, mechanicID string) ([]*models.Rating, error)
}
