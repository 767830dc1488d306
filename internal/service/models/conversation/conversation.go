package conversation

import (
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
)

// Counterpart is the other participant of a two-party conversation.
type Counterpart struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username,omitempty"`
	Role     role.Role `json:"role,omitempty"`
}

// Message is a single chat message. Once observed, only Read may change.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}

// Preview is the latest message shown in a conversation list.
type Preview struct {
	Body      string    `json:"body"`
	SenderID  int64     `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is the local thread kept per counterpart.
type Conversation struct {
	Counterpart       Counterpart `json:"counterpart"`
	Messages          []Message   `json:"messages"`
	UnreadCount       int         `json:"unreadCount"`
	LastSeenMessageID int64       `json:"lastSeenMessageId"`
	Latest            *Preview    `json:"latest,omitempty"`
}

// Clone returns a copy that shares no slices with c.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	if c.Latest != nil {
		p := *c.Latest
		out.Latest = &p
	}

	return out
}

// Summary is one entry of the remote conversation list.
type Summary struct {
	Counterpart Counterpart `json:"counterpart"`
	Latest      *Preview    `json:"latest,omitempty"`
	UnreadCount int         `json:"unreadCount"`
}

// Thread is the full history of one conversation as returned by the remote API.
type Thread struct {
	Counterpart Counterpart `json:"counterpart"`
	Messages    []Message   `json:"messages"`
}
