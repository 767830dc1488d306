package orderitem

import (
	"errors"
	"strings"
)

// Status is the fulfillment status of a single order item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

var ErrInvalidStatus = errors.New("invalid order item status")

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusCompleted, StatusRejected}

// transitions is the complete table of allowed moves; terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted, StatusRejected},
}

func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// ParseStatus parses a status as sent by the remote API.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}

	return status, nil
}

// Transitions returns the statuses reachable from s in one step.
func Transitions(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)

	return out
}

// CanTransition reports whether from -> to is an edge of the transition table.
// A same-status request is not an edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}
