package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"repairconnect/internal/config"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMechanicPos = models.Coordinate{Lat: 37.7799, Lng: -122.4044}

func testSimulationConfig() config.SimulationConfig {
	return config.SimulationConfig{
		StatusIntervalSeconds:   10,
		PositionIntervalSeconds: 1,
		ArrivalEstimateMinutes:  12,
		StepFraction:            0.5,
		UserLat:                 37.7749,
		UserLng:                 -122.4194,
	}
}

func TestLifecycleProgression(t *testing.T) {
	tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, nil, nil)

	require.Equal(t, models.StatusConfirmed, tr.CurrentStatus())
	assert.Equal(t, 0, tr.EstimatedArrivalMinutes())

	t.Run("ThreeTicksReachInProgress", func(t *testing.T) {
		tr.advance()
		assert.Equal(t, models.StatusOnTheWay, tr.CurrentStatus())
		assert.Equal(t, 12, tr.EstimatedArrivalMinutes())

		tr.advance()
		assert.Equal(t, models.StatusArrived, tr.CurrentStatus())
		assert.Equal(t, 0, tr.EstimatedArrivalMinutes())

		tr.advance()
		assert.Equal(t, models.StatusInProgress, tr.CurrentStatus())
	})

	t.Run("InProgressIsTheLastAutomaticStop", func(t *testing.T) {
		tr.advance()
		tr.advance()
		assert.Equal(t, models.StatusInProgress, tr.CurrentStatus())
	})

	t.Run("CompletionIsExplicit", func(t *testing.T) {
		require.NoError(t, tr.SetStatus(models.StatusCompleted))
		assert.Equal(t, models.StatusCompleted, tr.CurrentStatus())

		// Terminal: further coarse ticks change nothing.
		tr.advance()
		assert.Equal(t, models.StatusCompleted, tr.CurrentStatus())
	})
}

func TestPositionSimulation(t *testing.T) {
	cfg := testSimulationConfig()

	t.Run("IdleWhileConfirmed", func(t *testing.T) {
		tr := New(cfg, "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.step()
		assert.Equal(t, testMechanicPos, tr.CounterpartPosition())
	})

	t.Run("HalvesRemainingDistancePerTick", func(t *testing.T) {
		tr := New(cfg, "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.advance() // on_the_way

		tr.step()
		pos := tr.CounterpartPosition()
		assert.InDelta(t, 37.7774, pos.Lat, 1e-9)
		assert.InDelta(t, -122.4119, pos.Lng, 1e-9)

		remaining := func(p models.Coordinate) float64 {
			return math.Hypot(cfg.UserLat-p.Lat, cfg.UserLng-p.Lng)
		}
		before := remaining(pos)
		tr.step()
		after := remaining(tr.CounterpartPosition())
		assert.InDelta(t, before/2, after, 1e-12)
	})

	t.Run("SnapsToTargetOnArrival", func(t *testing.T) {
		tr := New(cfg, "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.advance()
		tr.step()
		tr.advance() // arrived

		pos := tr.CounterpartPosition()
		assert.Equal(t, cfg.UserLat, pos.Lat)
		assert.Equal(t, cfg.UserLng, pos.Lng)

		// Position ticks after arrival are ignored.
		tr.step()
		assert.Equal(t, pos, tr.CounterpartPosition())
	})
}

func TestSetStatus(t *testing.T) {
	tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, nil, nil)

	t.Run("Forward", func(t *testing.T) {
		require.NoError(t, tr.SetStatus(models.StatusOnTheWay))
		assert.Equal(t, 12, tr.EstimatedArrivalMinutes())
	})

	t.Run("SameStatusIsNoop", func(t *testing.T) {
		assert.NoError(t, tr.SetStatus(models.StatusOnTheWay))
	})

	t.Run("BackwardRejected", func(t *testing.T) {
		err := tr.SetStatus(models.StatusConfirmed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backward")
		assert.Equal(t, models.StatusOnTheWay, tr.CurrentStatus())
	})

	t.Run("UnknownRejected", func(t *testing.T) {
		assert.Error(t, tr.SetStatus("teleported"))
	})

	t.Run("SkipAheadRejected", func(t *testing.T) {
		fresh := New(testSimulationConfig(), "booking:2", "m-1", testMechanicPos, nil, nil)
		err := fresh.SetStatus(models.StatusArrived)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "skip")
		assert.Equal(t, models.StatusConfirmed, fresh.CurrentStatus())

		require.Error(t, fresh.SetStatus(models.StatusCompleted))
		assert.Equal(t, models.StatusConfirmed, fresh.CurrentStatus())
	})
}

type failingBus struct{ calls int }

func (b *failingBus) PublishJSON(eventType string, payload interface{}) error {
	b.calls++
	return errors.New("bus unavailable")
}

func TestPublishFailureDoesNotBlockTransitions(t *testing.T) {
	bus := &failingBus{}
	tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, bus, nil)

	tr.advance()
	tr.advance()
	tr.advance()
	require.NoError(t, tr.SetStatus(models.StatusCompleted))
	assert.Equal(t, models.StatusCompleted, tr.CurrentStatus())

	// Three automatic transitions plus completed, which publishes twice.
	assert.Equal(t, 5, bus.calls)
}

func TestEventsPublished(t *testing.T) {
	bus := events.NewEventBus()

	var statuses []string
	bus.Subscribe(events.EventStatusChanged, func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		statuses = append(statuses, payload.Status)
		return nil
	})
	completed := 0
	bus.Subscribe(events.EventBookingCompleted, func(event *events.Event) error {
		completed++
		return nil
	})

	tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, bus, nil)
	tr.advance()
	tr.advance()
	tr.advance()
	require.NoError(t, tr.SetStatus(models.StatusCompleted))

	assert.Equal(t, []string{
		models.StatusOnTheWay,
		models.StatusArrived,
		models.StatusInProgress,
		models.StatusCompleted,
	}, statuses)
	assert.Equal(t, 1, completed)
}

func TestStartStop(t *testing.T) {
	t.Run("StopHaltsTheLoop", func(t *testing.T) {
		tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.Start(context.Background())
		tr.Stop()

		// Intervals are seconds; stopping immediately means no tick fired.
		assert.Equal(t, models.StatusConfirmed, tr.CurrentStatus())
	})

	t.Run("StopIsIdempotent", func(t *testing.T) {
		tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.Start(context.Background())
		tr.Stop()
		tr.Stop()
	})

	t.Run("ContextCancelHaltsTheLoop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		tr := New(testSimulationConfig(), "booking:1", "m-1", testMechanicPos, nil, nil)
		tr.Start(ctx)
		cancel()

		doneCh := make(chan struct{})
		go func() {
			tr.wg.Wait()
			close(doneCh)
		}()
		select {
		case <-doneCh:
		case <-time.After(2 * time.Second):
			t.Fatal("tracker loop did not exit on context cancel")
		}
	})
}
