package models

const (
	StatusConfirmed  = "confirmed"
	StatusOnTheWay   = "on_the_way"
	StatusArrived    = "arrived"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	SenderUser     = "user"
	SenderMechanic = "mechanic"
)

// StatusOrder is the forward-only booking lifecycle. The timer-driven
// simulation walks the first four; completed needs an explicit update.
var StatusOrder = []string{
	StatusConfirmed,
	StatusOnTheWay,
	StatusArrived,
	StatusInProgress,
	StatusCompleted,
}

const (
	// KeyPrefixBooking and friends are the record store key namespaces.
	KeyPrefixBooking  = "booking:"
	KeyPrefixChat     = "chat:"
	KeyPrefixRating   = "rating:"
	KeyPrefixMechanic = "mechanic:"
)

const (
	MinRating = 1
	MaxRating = 5
)

// StatusIndex returns the position of a status in the lifecycle,
// or -1 for an unknown status.
func StatusIndex(status string) int {
	for i, s := range StatusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// ValidStatus reports whether status is one of the lifecycle states.
func ValidStatus(status string) bool {
	return StatusIndex(status) >= 0
}

// NextStatus returns the state following status, or "" when status is
// terminal or unknown.
func NextStatus(status string) string {
	idx := StatusIndex(status)
	if idx < 0 || idx >= len(StatusOrder)-1 {
		return ""
	}
	return StatusOrder[idx+1]
}

// ValidRating reports whether value is inside the documented 1-5 bound.
func ValidRating(value int) bool {
	return value >= MinRating && value <= MaxRating
}
