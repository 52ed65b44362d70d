package orders

import "errors"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"   // card order awaiting webhook confirmation
	StatusCompleted Status = "completed" // paid, terminal
	StatusFailed    Status = "failed"    // cancelled, expired or payment failed, terminal
)

// ErrInvalidTransition reports a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid order status transition")

// transitions is the full set of allowed status changes. Completed and failed
// are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}
