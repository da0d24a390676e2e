package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"repairconnect/internal/models"
)

// MemoryRecordStore is an in-process implementation of the record store.
// It backs tests and acts as the failover target when Redis is down.
type MemoryRecordStore struct {
	mu        sync.RWMutex
	bookings  map[string]*models.Booking
	messages  map[string]*models.Message
	ratings   map[string]*models.Rating
	mechanics map[string]*models.Mechanic
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		bookings:  make(map[string]*models.Booking),
		messages:  make(map[string]*models.Message),
		ratings:   make(map[string]*models.Rating),
		mechanics: make(map[string]*models.Mechanic),
	}
}

func (r *MemoryRecordStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	booking.CreatedAt = now
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}

	ms := now.UnixMilli()
	for {
		booking.ID = fmt.Sprintf("%s%d", models.KeyPrefixBooking, ms)
		if _, exists := r.bookings[booking.ID]; !exists {
			break
		}
		ms++
	}

	copied := *booking
	r.bookings[booking.ID] = &copied
	return nil
}

func (r *MemoryRecordStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[bookingKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *booking
	return &copied, nil
}

func (r *MemoryRecordStore) UpdateBookingStatus(ctx context.Context, id string, status string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[bookingKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	booking.Status = status
	booking.UpdatedAt = time.Now().UTC()
	copied := *booking
	return &copied, nil
}

func (r *MemoryRecordStore) AppendMessage(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	message.Timestamp = now

	ms := now.UnixMilli()
	for {
		message.ID = fmt.Sprintf("%s%s:%d", models.KeyPrefixChat, message.BookingID, ms)
		if _, exists := r.messages[message.ID]; !exists {
			break
		}
		ms++
	}

	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *MemoryRecordStore) ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make([]*models.Message, 0)
	for _, msg := range r.messages {
		if msg.BookingID == bookingID {
			copied := *msg
			messages = append(messages, &copied)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

func (r *MemoryRecordStore) CreateRating(ctx context.Context, rating *models.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	rating.CreatedAt = now

	ms := now.UnixMilli()
	for {
		rating.ID = fmt.Sprintf("%s%d", models.KeyPrefixRating, ms)
		if _, exists := r.ratings[rating.ID]; !exists {
			break
		}
		ms++
	}

	copied := *rating
	r.ratings[rating.ID] = &copied
	return nil
}

func (r *MemoryRecordStore) ListRatingsByMechanic(ctx context.Context, mechanicID string) ([]*models.Rating, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ratings := make([]*models.Rating, 0)
	for _, rating := range r.ratings {
		if rating.MechanicID == mechanicID {
			copied := *rating
			ratings = append(ratings, &copied)
		}
	}

	sort.Slice(ratings, func(i, j int) bool {
		return ratings[i].CreatedAt.Before(ratings[j].CreatedAt)
	})
	return ratings, nil
}

func (r *MemoryRecordStore) SeedMechanics(ctx context.Context, mechanics []*models.Mechanic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range mechanics {
		copied := *m
		r.mechanics[m.ID] = &copied
	}
	return nil
}

func (r *MemoryRecordStore) ListMechanics(ctx context.Context) ([]*models.Mechanic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mechanics := make([]*models.Mechanic, 0, len(r.mechanics))
	for _, m := range r.mechanics {
		copied := *m
		mechanics = append(mechanics, &copied)
	}

	sort.Slice(mechanics, func(i, j int) bool { return mechanics[i].ID < mechanics[j].ID })
	return mechanics, nil
}

func (r *MemoryRecordStore) Ping(ctx context.Context) error {
	return nil
}
