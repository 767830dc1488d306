package event

import (
	"time"

	"github.com/google/uuid"
)

// Type names a kind of change notification.
type Type string

const (
	TypeItemStatusChanged   Type = "order.item_status_changed"
	TypeOrdersRefreshed     Type = "orders.refreshed"
	TypeConversationUpdated Type = "conversation.updated"
	TypeUnreadChanged       Type = "unread.changed"
	TypeSyncWarning         Type = "sync.warning"
)

// Event is a change notification raised by the stores and the sync engine.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New creates an event with a fresh id.
func New(t Type, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
}

// ItemStatusChanged is the payload of TypeItemStatusChanged.
type ItemStatusChanged struct {
	OrderID    int64  `json:"orderId"`
	ItemID     int64  `json:"itemId"`
	SellerID   int64  `json:"sellerId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
}

// OrdersRefreshed is the payload of TypeOrdersRefreshed.
type OrdersRefreshed struct {
	Orders int `json:"orders"`
}

// ConversationUpdated is the payload of TypeConversationUpdated.
type ConversationUpdated struct {
	CounterpartID     int64 `json:"counterpartId"`
	Appended          int   `json:"appended"`
	UnreadCount       int   `json:"unreadCount"`
	LastSeenMessageID int64 `json:"lastSeenMessageId"`
}

// UnreadChanged is the payload of TypeUnreadChanged.
type UnreadChanged struct {
	Total int `json:"total"`
}

// SyncWarning is the payload of TypeSyncWarning.
type SyncWarning struct {
	Target              string `json:"target"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	Reason              string `json:"reason"`
}
