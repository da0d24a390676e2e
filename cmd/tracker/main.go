// Command tracker is a demo client for the record store API. It books
// a mechanic, runs the lifecycle simulation against the live booking,
// exchanges a couple of chat messages and leaves a rating.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairconnect/internal/chat"
	"repairconnect/internal/client"
	"repairconnect/internal/config"
	"repairconnect/internal/events"
	"repairconnect/internal/logging"
	"repairconnect/internal/models"
	"repairconnect/internal/tracker"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		serverURL  = flag.String("server", "http://localhost:8080", "record store base URL")
		token      = flag.String("token", os.Getenv("API_TOKEN"), "bearer token")
		mechanicID = flag.String("mechanic", "", "mechanic id (defaults to first available)")
		service    = flag.String("service", "Engine Diagnostics", "service to book")
		date       = flag.String("date", time.Now().AddDate(0, 0, 1).Format("2006-01-02"), "booking date")
		timeSlot   = flag.String("time", "10:00", "booking time slot")
	)
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*serverURL, *token)
	if err := c.Health(ctx); err != nil {
		logger.Error().Err(err).Str("server", *serverURL).Msg("record store is unreachable")
		return err
	}

	mechanic, err := pickMechanic(ctx, c, *mechanicID)
	if err != nil {
		return err
	}
	logger.Info().Str("mechanic", mechanic.Name).Str("mechanic_id", mechanic.ID).Msg("mechanic selected")

	booking, err := c.CreateBooking(ctx, models.Booking{
		MechanicID: mechanic.ID,
		Service:    *service,
		Date:       *date,
		Time:       *timeSlot,
		Vehicle:    models.Vehicle{Make: "Toyota", Model: "Corolla", Year: "2019", Issue: "check engine light"},
	})
	if err != nil {
		logger.Error().Err(err).Msg("create booking")
		return err
	}
	logger.Info().Str("booking_id", booking.ID).Str("status", booking.Status).Msg("booking created")

	bus := events.NewEventBus()
	subscribeStatusSync(bus, c, logger)

	tr := tracker.New(cfg.Simulation, booking.ID, mechanic.ID, mechanic.Location(), bus, &logger)
	tr.Start(ctx)
	defer tr.Stop()

	simulator := chat.NewSimulator(c, chat.NewCannedResponder(), cfg.Chat.ReplyDelay(), &logger)
	defer simulator.Stop()

	message, err := c.SendMessage(ctx, booking.ID, models.Message{Text: "How much longer until you arrive?"})
	if err != nil {
		logger.Error().Err(err).Msg("send chat message")
	} else {
		simulator.MessageSent(message)
	}

	if err := waitForStatus(ctx, tr, models.StatusInProgress); err != nil {
		return err
	}
	logger.Info().
		Float64("lat", tr.CounterpartPosition().Lat).
		Float64("lng", tr.CounterpartPosition().Lng).
		Msg("mechanic is working on the vehicle")

	// Give the repair a moment, then complete explicitly. The tracker
	// never reaches completed on its own.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.Simulation.StatusInterval()):
	}
	if err := tr.SetStatus(models.StatusCompleted); err != nil {
		return err
	}

	if _, err := c.SubmitRating(ctx, models.Rating{
		MechanicID: mechanic.ID,
		BookingID:  booking.ID,
		Rating:     5,
		Comment:    "Quick and professional service",
	}); err != nil {
		logger.Error().Err(err).Msg("submit rating")
		return err
	}

	printTranscript(ctx, c, booking.ID, logger)

	final, err := c.GetBooking(ctx, booking.ID)
	if err != nil {
		return err
	}
	logger.Info().Str("booking_id", final.ID).Str("status", final.Status).Msg("demo finished")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "tracker-demo").Logger()

	return cfg, logger, closer, nil
}

func pickMechanic(ctx context.Context, c *client.Client, id string) (*models.Mechanic, error) {
	mechanics, err := c.ListMechanics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mechanics: %w", err)
	}
	if id != "" {
		for _, m := range mechanics {
			if m.ID == id {
				return m, nil
			}
		}
		return nil, fmt.Errorf("mechanic %s not found", id)
	}
	for _, m := range mechanics {
		if m.Available {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no available mechanics")
}

// subscribeStatusSync mirrors local tracker transitions to the server.
func subscribeStatusSync(bus *events.EventBus, c *client.Client, logger zerolog.Logger) {
	bus.Subscribe(events.EventStatusChanged, func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := c.UpdateBookingStatus(ctx, payload.BookingID, payload.Status); err != nil {
			logger.Error().Err(err).Str("status", payload.Status).Msg("sync status to server")
			return err
		}
		logger.Info().Str("status", payload.Status).Msg("status synced")
		return nil
	})
}

func waitForStatus(ctx context.Context, tr *tracker.Tracker, status string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tr.CurrentStatus() == status {
				return nil
			}
		}
	}
}

func printTranscript(ctx context.Context, c *client.Client, bookingID string, logger zerolog.Logger) {
	messages, err := c.ListMessages(ctx, bookingID)
	if err != nil {
		logger.Error().Err(err).Msg("fetch chat transcript")
		return
	}
	for _, m := range messages {
		logger.Info().Str("sender", m.Sender).Str("text", m.Text).Msg("chat")
	}
}
