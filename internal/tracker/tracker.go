// Package tracker simulates the mechanic side of an active booking:
// a coarse ticker walks the status lifecycle forward and a fine ticker
// moves the mechanic's position toward the customer while en route.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repairconnect/internal/config"
	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	"github.com/rs/zerolog"
)

// Tracker drives one booking's lifecycle. The automatic progression is
// confirmed -> on_the_way -> arrived -> in_progress; completed is only
// reachable through an explicit SetStatus call.
type Tracker struct {
	cfg        config.SimulationConfig
	bookingID  string
	mechanicID string
	bus        domain.EventPublisher
	log        zerolog.Logger

	mu       sync.Mutex
	status   string
	eta      int
	position models.Coordinate
	target   models.Coordinate

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a tracker starting in confirmed, with the mechanic at
// mechanicPos and the customer at the configured user coordinates.
func New(cfg config.SimulationConfig, bookingID, mechanicID string, mechanicPos models.Coordinate, bus domain.EventPublisher, logger *zerolog.Logger) *Tracker {
	t := &Tracker{
		cfg:        cfg,
		bookingID:  bookingID,
		mechanicID: mechanicID,
		bus:        bus,
		status:     models.StatusConfirmed,
		position:   mechanicPos,
		target:     models.Coordinate{Lat: cfg.UserLat, Lng: cfg.UserLng},
		done:       make(chan struct{}),
	}
	if logger != nil {
		t.log = logger.With().Str("component", "tracker").Str("booking_id", bookingID).Logger()
	}
	return t
}

// Start launches the ticker loop. It returns immediately; call Stop or
// cancel the context to terminate.
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go t.run(ctx)
}

// Stop terminates the ticker loop and waits for it to exit. Safe to
// call more than once. After Stop returns no further automatic
// transitions occur.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	statusTicker := time.NewTicker(t.cfg.StatusInterval())
	defer statusTicker.Stop()
	positionTicker := time.NewTicker(t.cfg.PositionInterval())
	defer positionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case <-statusTicker.C:
			t.advance()
		case <-positionTicker.C:
			t.step()
		}
	}
}

// CurrentStatus returns the booking's lifecycle status.
func (t *Tracker) CurrentStatus() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// EstimatedArrivalMinutes is nonzero only while the mechanic is on the
// way.
func (t *Tracker) EstimatedArrivalMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eta
}

// CounterpartPosition returns the simulated mechanic coordinates.
func (t *Tracker) CounterpartPosition() models.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// SetStatus applies an external status update. The lifecycle only
// moves one step at a time: backward moves and skips ahead are
// rejected, setting the current status again is a no-op.
func (t *Tracker) SetStatus(status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("unknown status %q", status)
	}

	t.mu.Lock()
	if models.StatusIndex(status) < models.StatusIndex(t.status) {
		current := t.status
		t.mu.Unlock()
		return fmt.Errorf("cannot move status backward from %s to %s", current, status)
	}
	if status == t.status {
		t.mu.Unlock()
		return nil
	}
	if models.StatusIndex(status) > models.StatusIndex(t.status)+1 {
		current := t.status
		t.mu.Unlock()
		return fmt.Errorf("cannot skip from %s to %s", current, status)
	}
	t.applyLocked(status)
	t.mu.Unlock()

	t.publish(status)
	return nil
}

// advance performs one coarse tick. in_progress is the last automatic
// stop; completion requires an explicit SetStatus.
func (t *Tracker) advance() {
	t.mu.Lock()
	var next string
	switch t.status {
	case models.StatusConfirmed:
		next = models.StatusOnTheWay
	case models.StatusOnTheWay:
		next = models.StatusArrived
	case models.StatusArrived:
		next = models.StatusInProgress
	default:
		t.mu.Unlock()
		return
	}
	t.applyLocked(next)
	t.mu.Unlock()

	t.publish(next)
}

// step performs one fine tick, moving the mechanic a fixed fraction of
// the remaining distance. Only active while on the way.
func (t *Tracker) step() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != models.StatusOnTheWay {
		return
	}
	t.position.Lat += (t.target.Lat - t.position.Lat) * t.cfg.StepFraction
	t.position.Lng += (t.target.Lng - t.position.Lng) * t.cfg.StepFraction
}

func (t *Tracker) applyLocked(status string) {
	t.status = status
	switch status {
	case models.StatusOnTheWay:
		t.eta = t.cfg.ArrivalEstimateMinutes
	case models.StatusArrived:
		t.eta = 0
		t.position = t.target
	default:
		t.eta = 0
	}
	t.log.Info().Str("status", status).Int("eta_minutes", t.eta).Msg("booking status advanced")
}

func (t *Tracker) publish(status string) {
	if t.bus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  t.bookingID,
		MechanicID: t.mechanicID,
		Status:     status,
		ChangedAt:  time.Now().UTC(),
	}
	if err := t.bus.PublishJSON(events.EventStatusChanged, payload); err != nil {
		t.log.Error().Err(err).Msg("publish status change")
	}
	if status == models.StatusCompleted {
		if err := t.bus.PublishJSON(events.EventBookingCompleted, payload); err != nil {
			t.log.Error().Err(err).Msg("publish completion")
		}
	}
}
