package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records sent messages; only SendMessage is used by the simulator.
type fakeAPI struct {
	domain.BookingAPI

	mu   sync.Mutex
	sent []models.Message
}

func (f *fakeAPI) SendMessage(ctx context.Context, bookingID string, msg models.Message) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.BookingID = bookingID
	f.sent = append(f.sent, msg)
	return &msg, nil
}

func (f *fakeAPI) sentMessages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.sent...)
}

func TestCannedResponder(t *testing.T) {
	t.Run("RepliesToUser", func(t *testing.T) {
		r := NewCannedResponderWithPick([]string{"a", "b"}, func(n int) int { return 1 })
		text, ok := r.Reply(&models.Message{Sender: models.SenderUser, Text: "hi"})
		require.True(t, ok)
		assert.Equal(t, "b", text)
	})

	t.Run("IgnoresMechanic", func(t *testing.T) {
		r := NewCannedResponder()
		_, ok := r.Reply(&models.Message{Sender: models.SenderMechanic, Text: "on my way"})
		assert.False(t, ok)
	})

	t.Run("DefaultSetIsNonEmpty", func(t *testing.T) {
		r := NewCannedResponder()
		text, ok := r.Reply(&models.Message{Sender: models.SenderUser, Text: "hi"})
		require.True(t, ok)
		assert.Contains(t, cannedReplies, text)
	})
}

func TestSimulatorReplies(t *testing.T) {
	api := &fakeAPI{}
	responder := NewCannedResponderWithPick([]string{"Got it, thanks!"}, func(n int) int { return 0 })
	sim := NewSimulator(api, responder, 10*time.Millisecond, nil)
	defer sim.Stop()

	sim.MessageSent(&models.Message{BookingID: "booking:1", Sender: models.SenderUser, Text: "hello"})

	require.Eventually(t, func() bool {
		return len(api.sentMessages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	sent := api.sentMessages()[0]
	assert.Equal(t, "booking:1", sent.BookingID)
	assert.Equal(t, models.SenderMechanic, sent.Sender)
	assert.Equal(t, "Got it, thanks!", sent.Text)
}

func TestSimulatorDoesNotAnswerItself(t *testing.T) {
	api := &fakeAPI{}
	sim := NewSimulator(api, NewCannedResponder(), time.Millisecond, nil)
	defer sim.Stop()

	sim.MessageSent(&models.Message{BookingID: "booking:1", Sender: models.SenderMechanic, Text: "Got it, thanks!"})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, api.sentMessages())
}

func TestSimulatorStopCancelsPending(t *testing.T) {
	api := &fakeAPI{}
	sim := NewSimulator(api, NewCannedResponder(), 200*time.Millisecond, nil)

	sim.MessageSent(&models.Message{BookingID: "booking:1", Sender: models.SenderUser, Text: "hello"})
	sim.Stop()

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, api.sentMessages())

	// After Stop new messages are ignored too.
	sim.MessageSent(&models.Message{BookingID: "booking:1", Sender: models.SenderUser, Text: "anyone?"})
	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, api.sentMessages())
}

func TestSimulatorAttachedToBus(t *testing.T) {
	api := &fakeAPI{}
	responder := NewCannedResponderWithPick([]string{"Perfect, see you soon!"}, func(n int) int { return 0 })
	sim := NewSimulator(api, responder, 5*time.Millisecond, nil)
	defer sim.Stop()

	bus := events.NewEventBus()
	sim.Attach(bus)

	require.NoError(t, bus.PublishJSON(events.EventMessageSent, &models.Message{
		BookingID: "booking:9",
		Sender:    models.SenderUser,
		Text:      "How much longer until you arrive?",
	}))

	require.Eventually(t, func() bool {
		return len(api.sentMessages()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Perfect, see you soon!", api.sentMessages()[0].Text)
}
