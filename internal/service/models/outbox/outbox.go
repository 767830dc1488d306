package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
)

// OutboxMessage is a change notification waiting to be published to the broker.
type OutboxMessage struct {
	ID           int64
	EventID      string
	EventType    string
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// Route tells where outbox messages are published.
type Route struct {
	ExchangeName string
	// RoutingKeyPrefix is joined with the event type, e.g. "marketplace.order.item_status_changed".
	RoutingKeyPrefix string
	MaxRetries       int
}

// FromEvent serializes an event into a message that is due immediately.
func FromEvent(ev event.Event, route Route) (OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := string(ev.Type)
	if route.RoutingKeyPrefix != "" {
		routingKey = route.RoutingKeyPrefix + "." + routingKey
	}

	now := time.Now()

	return OutboxMessage{
		EventID:      ev.ID.String(),
		EventType:    string(ev.Type),
		ExchangeName: route.ExchangeName,
		RoutingKey:   routingKey,
		Payload:      payload,
		ContentType:  "application/json",
		MaxRetries:   route.MaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now,
	}, nil
}

// Exhausted reports whether the message has used every delivery attempt its route allowed.
// Exhausted messages stay in the table for inspection and are never selected again.
func (m OutboxMessage) Exhausted() bool {
	return m.MaxRetries > 0 && m.RetryCount >= m.MaxRetries
}

// Retry returns the message after one more failed publish, due again at next.
func (m OutboxMessage) Retry(cause error, next time.Time) OutboxMessage {
	m.RetryCount++
	m.LastError = cause.Error()
	m.NextRetryAt = next
	m.UpdatedAt = time.Now()

	return m
}
