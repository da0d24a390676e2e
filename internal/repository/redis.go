package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"repairconnect/internal/config"
	"repairconnect/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// RedisRecordStore persists bookings, chat messages, ratings and the
// mechanic catalog as JSON documents under prefixed keys.
type RedisRecordStore struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisRecordStore(client *redis.Client) *RedisRecordStore {
	return &RedisRecordStore{client: client}
}

// CreateBooking assigns a timestamp-derived ID and stores the booking.
// On an ID collision the millisecond is bumped instead of overwriting.
func (r *RedisRecordStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	now := time.Now().UTC()
	booking.CreatedAt = now
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}

	ms := now.UnixMilli()
	for attempt := 0; attempt < 100; attempt++ {
		booking.ID = fmt.Sprintf("%s%d", models.KeyPrefixBooking, ms)
		data, err := json.Marshal(booking)
		if err != nil {
			return fmt.Errorf("failed to marshal booking: %w", err)
		}

		ok, err := r.client.SetNX(ctx, booking.ID, data, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to store booking: %w", err)
		}
		if ok {
			return nil
		}
		ms++
	}
	return ErrAlreadyExists
}

func (r *RedisRecordStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	val, err := r.client.Get(ctx, bookingKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking from redis: %w", err)
	}

	var booking models.Booking
	if err := json.Unmarshal([]byte(val), &booking); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
	}
	return &booking, nil
}

// UpdateBookingStatus rewrites the status and updatedAt fields of an
// existing booking and returns the updated record.
func (r *RedisRecordStore) UpdateBookingStatus(ctx context.Context, id string, status string) (*models.Booking, error) {
	booking, err := r.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	booking.Status = status
	booking.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(booking)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking: %w", err)
	}
	if err := r.client.Set(ctx, bookingKey(id), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return booking, nil
}

// AppendMessage stores a chat message under chat:<bookingID>:<unix-ms>.
func (r *RedisRecordStore) AppendMessage(ctx context.Context, message *models.Message) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	now := time.Now().UTC()
	message.Timestamp = now

	ms := now.UnixMilli()
	for attempt := 0; attempt < 100; attempt++ {
		message.ID = fmt.Sprintf("%s%s:%d", models.KeyPrefixChat, message.BookingID, ms)
		data, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		ok, err := r.client.SetNX(ctx, message.ID, data, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}
		if ok {
			return nil
		}
		ms++
	}
	return ErrAlreadyExists
}

// ListMessages returns a booking's messages ordered by timestamp ascending.
func (r *RedisRecordStore) ListMessages(ctx context.Context, bookingID string) ([]*models.Message, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	prefix := fmt.Sprintf("%s%s:", models.KeyPrefixChat, bookingID)
	values, err := r.scanValues(ctx, prefix)
	if err != nil {
		return nil, err
	}

	messages := make([]*models.Message, 0, len(values))
	for _, raw := range values {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

func (r *RedisRecordStore) CreateRating(ctx context.Context, rating *models.Rating) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	now := time.Now().UTC()
	rating.CreatedAt = now

	ms := now.UnixMilli()
	for attempt := 0; attempt < 100; attempt++ {
		rating.ID = fmt.Sprintf("%s%d", models.KeyPrefixRating, ms)
		data, err := json.Marshal(rating)
		if err != nil {
			return fmt.Errorf("failed to marshal rating: %w", err)
		}

		ok, err := r.client.SetNX(ctx, rating.ID, data, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to store rating: %w", err)
		}
		if ok {
			return nil
		}
		ms++
	}
	return ErrAlreadyExists
}

// ListRatingsByMechanic scans all ratings and filters by exact mechanic ID.
func (r *RedisRecordStore) ListRatingsByMechanic(ctx context.Context, mechanicID string) ([]*models.Rating, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	values, err := r.scanValues(ctx, models.KeyPrefixRating)
	if err != nil {
		return nil, err
	}

	ratings := make([]*models.Rating, 0)
	for _, raw := range values {
		var rating models.Rating
		if err := json.Unmarshal([]byte(raw), &rating); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating: %w", err)
		}
		if rating.MechanicID == mechanicID {
			ratings = append(ratings, &rating)
		}
	}

	sort.Slice(ratings, func(i, j int) bool {
		return ratings[i].CreatedAt.Before(ratings[j].CreatedAt)
	})
	return ratings, nil
}

// SeedMechanics writes the catalog under mechanic:<id> keys. Existing
// records are overwritten; the catalog file is the source of truth.
func (r *RedisRecordStore) SeedMechanics(ctx context.Context, mechanics []*models.Mechanic) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	for _, m := range mechanics {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal mechanic %s: %w", m.ID, err)
		}
		key := models.KeyPrefixMechanic + m.ID
		if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to seed mechanic %s: %w", m.ID, err)
		}
	}
	return nil
}

func (r *RedisRecordStore) ListMechanics(ctx context.Context) ([]*models.Mechanic, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	values, err := r.scanValues(ctx, models.KeyPrefixMechanic)
	if err != nil {
		return nil, err
	}

	mechanics := make([]*models.Mechanic, 0, len(values))
	for _, raw := range values {
		var m models.Mechanic
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mechanic: %w", err)
		}
		mechanics = append(mechanics, &m)
	}

	sort.Slice(mechanics, func(i, j int) bool { return mechanics[i].ID < mechanics[j].ID })
	return mechanics, nil
}

func (r *RedisRecordStore) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if _, err := r.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// scanValues walks keys matching prefix* and fetches their values.
func (r *RedisRecordStore) scanValues(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(keys))
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}
		values = append(values, val)
	}
	return values, nil
}

func bookingKey(id string) string {
	if len(id) >= len(models.KeyPrefixBooking) && id[:len(models.KeyPrefixBooking)] == models.KeyPrefixBooking {
		return id
	}
	return models.KeyPrefixBooking + id
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
