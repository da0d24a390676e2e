// Package worker asynchronously mirrors booking changes to Google
// Sheets through a Redis-backed task queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"
)

// SyncTask is one unit of Sheets work, serialized into the Redis queue.
type SyncTask struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	BookingID  string          `json:"booking_id"`
	Booking    *models.Booking `json:"booking,omitempty"`
	Status     string          `json:"status,omitempty"`
	RetryCount int             `json:"retry_count"`
	NotBefore  time.Time       `json:"not_before,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SheetsClient is the slice of the Sheets service the worker needs.
type SheetsClient interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
}

// SheetsWorker consumes sync tasks and applies them to Google Sheets.
// Tasks go through Redis when available, with an in-memory channel as
// fallback; exhausted tasks land on a dead-letter list.
type SheetsWorker struct {
	sheets        SheetsClient
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan SyncTask
	queueKey      string
	deadLetterKey string
	pollInterval  time.Duration
	log           zerolog.Logger
}

// NewSheetsWorker builds a worker with sane defaults.
func NewSheetsWorker(sheets SheetsClient, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SheetsWorker {
	w := &SheetsWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan SyncTask, 128),
		queueKey:      "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
	}
	if logger != nil {
		w.log = logger.With().Str("component", "sheets_worker").Logger()
	}
	return w
}

// EnqueueTask schedules a task via Redis, or the in-memory queue when
// Redis is missing or down.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, task SyncTask) error {
	if task.Type == "" {
		return errors.New("task type is required")
	}
	if task.BookingID == "" && (task.Booking == nil || task.Booking.ID == "") {
		return errors.New("booking id is required")
	}
	if task.BookingID == "" {
		task.BookingID = task.Booking.ID
	}
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now()

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.log.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return errors.New("sync queue is full")
	}
}

// Attach subscribes the worker to booking events on the bus. Created
// bookings are re-read from the store so the sheet row carries the full
// record, not the event snapshot.
func (w *SheetsWorker) Attach(bus *events.EventBus, store domain.RecordStore) {
	bus.Subscribe(events.EventBookingCreated, func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		booking, err := store.GetBooking(ctx, payload.BookingID)
		if err != nil {
			w.log.Error().Err(err).Str("booking_id", payload.BookingID).Msg("fetch created booking")
			return err
		}
		return w.EnqueueTask(ctx, SyncTask{Type: TaskUpsert, Booking: booking})
	})

	bus.Subscribe(events.EventStatusChanged, func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.EnqueueTask(ctx, SyncTask{
			Type:      TaskUpdateStatus,
			BookingID: payload.BookingID,
			Status:    payload.Status,
		})
	})
}

// Start launches the main loop; stops when ctx is done.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("sheets worker started")
	defer w.log.Info().Msg("sheets worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if task, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, task)
			continue
		}

		if task, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, task)
			continue
		}

		if w.redis == nil {
			// No blocking pop available; avoid a busy loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (SyncTask, bool) {
	if w.redis == nil {
		return SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return SyncTask{}, false
		}
		w.log.Error().Err(err).Msg("redis BRPOP error")
		return SyncTask{}, false
	}
	if len(res) != 2 {
		return SyncTask{}, false
	}
	var task SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.log.Error().Err(err).Msg("decode redis task")
		return SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task SyncTask) {
	if !task.NotBefore.IsZero() && time.Now().Before(task.NotBefore) {
		w.requeue(ctx, task)
		// Back off a little so a lone delayed task does not spin.
		select {
		case <-ctx.Done():
		case <-time.After(100 * time.Millisecond):
		}
		return
	}

	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.log.Debug().Str("task_id", task.ID).Str("type", task.Type).Msg("sync task completed")
}

func (w *SheetsWorker) handleTask(ctx context.Context, task SyncTask) error {
	switch task.Type {
	case TaskUpsert:
		if task.Booking == nil {
			return errors.New("booking payload missing")
		}
		return w.sheets.UpsertBooking(ctx, task.Booking)
	case TaskUpdateStatus:
		if task.BookingID == "" || task.Status == "" {
			return errors.New("booking id or status missing")
		}
		return w.sheets.UpdateBookingStatus(ctx, task.BookingID, task.Status)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.log.Error().Err(cause).Str("task_id", task.ID).Int("attempts", attempt).Msg("sync task exhausted retries")
		w.pushDeadLetter(ctx, task)
		return
	}

	task.RetryCount = attempt
	task.NotBefore = time.Now().Add(w.retryPolicy.NextDelay(attempt))
	w.log.Warn().Err(cause).Str("task_id", task.ID).Int("attempt", attempt).Time("not_before", task.NotBefore).Msg("sync task retry scheduled")
	w.requeue(ctx, task)
}

func (w *SheetsWorker) requeue(ctx context.Context, task SyncTask) {
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err == nil {
			return
		}
	}
	select {
	case w.queue <- task:
	default:
		w.log.Error().Str("task_id", task.ID).Msg("requeue failed, task dropped")
	}
}

func (w *SheetsWorker) pushRedis(ctx context.Context, task SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.queueKey, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task SyncTask) {
	data, err := json.Marshal(task)
	if err != nil {
		w.log.Error().Err(err).Str("task_id", task.ID).Msg("encode deadletter task")
		return
	}
	if w.redis != nil {
		if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
			w.log.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push failed")
		}
		return
	}
	w.log.Error().RawJSON("task", data).Msg("dead task (no redis)")
}
