// Package chat simulates the mechanic side of a booking conversation.
package chat

import (
	"math/rand"

	"repairconnect/internal/models"
)

var cannedReplies = []string{
	"Got it, thanks!",
	"Perfect, see you soon!",
	"Understood. I'll be there shortly.",
	"Great! Let me know if you need anything else.",
}

// CannedResponder answers every user message with a random canned
// reply. Mechanic messages get no response.
type CannedResponder struct {
	replies []string
	pick    func(n int) int
}

// NewCannedResponder uses the default reply set and math/rand selection.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{replies: cannedReplies, pick: rand.Intn}
}

// NewCannedResponderWithPick substitutes the selection function, for
// deterministic tests.
func NewCannedResponderWithPick(replies []string, pick func(n int) int) *CannedResponder {
	return &CannedResponder{replies: replies, pick: pick}
}

func (c *CannedResponder) Reply(incoming *models.Message) (string, bool) {
	if incoming == nil || incoming.Sender != models.SenderUser {
		return "", false
	}
	if len(c.replies) == 0 {
		return "", false
	}
	return c.replies[c.pick(len(c.replies))], true
}
