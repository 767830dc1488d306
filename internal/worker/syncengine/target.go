package syncengine

import (
	"strconv"
	"time"
)

// State is the lifecycle position of a sync target.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateApplying
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateApplying:
		return "applying"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type kind int

const (
	kindOrders kind = iota
	kindConversations
	kindThread
)

const (
	KeyOrders        = "orders"
	KeyConversations = "conversations"
)

// ThreadKey names the target polling one conversation.
func ThreadKey(counterpartID int64) string {
	return "thread:" + strconv.FormatInt(counterpartID, 10)
}

// Subscription is a handle into the target table. It becomes stale once the target is cancelled.
type Subscription struct {
	index      int
	generation uint64
}

// slot is one entry of the target table. Slots are reused per key; the generation tells subscriptions apart.
type slot struct {
	key           string
	kind          kind
	counterpartID int64

	generation uint64
	active     bool
	state      State
	// stop ends the slot's timer goroutine; nil when the target is not polled on a schedule.
	stop chan struct{}

	backoffUntil          time.Time
	consecutiveRateLimits int
	warning               bool
	lastErr               error
	lastSuccess           time.Time
	suppressed            int
}

// TargetStatus is a read-only snapshot of one target for the sync indicator.
type TargetStatus struct {
	Key                   string    `json:"key"`
	Active                bool      `json:"active"`
	State                 State     `json:"state"`
	ConsecutiveRateLimits int       `json:"consecutiveRateLimits"`
	Warning               bool      `json:"warning"`
	LastError             string    `json:"lastError,omitempty"`
	LastSuccess           time.Time `json:"lastSuccess"`
	BackoffUntil          time.Time `json:"backoffUntil"`
	Suppressed            int       `json:"suppressed"`
}

func (s *slot) status() TargetStatus {
	st := TargetStatus{
		Key:                   s.key,
		Active:                s.active,
		State:                 s.state,
		ConsecutiveRateLimits: s.consecutiveRateLimits,
		Warning:               s.warning,
		LastSuccess:           s.lastSuccess,
		BackoffUntil:          s.backoffUntil,
		Suppressed:            s.suppressed,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}

	return st
}
