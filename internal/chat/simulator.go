package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

// Simulator schedules a mechanic reply for every user message, after a
// fixed delay. Stop cancels all pending replies.
type Simulator struct {
	api       domain.BookingAPI
	responder domain.Responder
	delay     time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewSimulator(api domain.BookingAPI, responder domain.Responder, delay time.Duration, logger *zerolog.Logger) *Simulator {
	s := &Simulator{
		api:       api,
		responder: responder,
		delay:     delay,
		timers:    make(map[*time.Timer]struct{}),
	}
	if logger != nil {
		s.log = logger.With().Str("component", "chat_simulator").Logger()
	}
	return s
}

// Attach subscribes the simulator to chat message events on the bus.
func (s *Simulator) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventMessageSent, func(event *events.Event) error {
		var msg models.Message
		if err := json.Unmarshal(event.Payload, &msg); err != nil {
			return err
		}
		s.MessageSent(&msg)
		return nil
	})
}

// MessageSent schedules a reply to the given message if the responder
// produces one. Mechanic messages never trigger a reply, so the
// simulator cannot answer itself.
func (s *Simulator) MessageSent(msg *models.Message) {
	text, ok := s.responder.Reply(msg)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	bookingID := msg.BookingID
	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, timer)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if _, err := s.api.SendMessage(ctx, bookingID, models.Message{
			Sender: models.SenderMechanic,
			Text:   text,
		}); err != nil {
			s.log.Error().Err(err).Str("booking_id", bookingID).Msg("send simulated reply")
		}
	})
	s.timers[timer] = struct{}{}
}

// Stop cancels pending replies and waits for in-flight ones to finish.
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	for timer := range s.timers {
		if timer.Stop() {
			// Callback will never run; release its slot.
			s.wg.Done()
		}
		delete(s.timers, timer)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
