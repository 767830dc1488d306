package ioutboxrepo

import (
	"context"
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
)

// IOutboxRepository stores change events until the broker has accepted them.
// Messages are addressed by their event id, which is also the broker message id.
type IOutboxRepository interface {
	Insert(ctx context.Context, msg outbox.OutboxMessage) error

	// ListDue returns up to limit messages due at now that still have attempts left, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error)

	// MarkPublished removes a delivered event.
	MarkPublished(ctx context.Context, eventID string) error

	// Reschedule stores the retry state produced by outbox.OutboxMessage.Retry.
	Reschedule(ctx context.Context, msg outbox.OutboxMessage) error
}
