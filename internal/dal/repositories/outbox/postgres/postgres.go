package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
)

const outboxTable = "outbox"

// messageColumns is the select and scan order for outbox rows.
var messageColumns = []string{
	"id", "event_id", "event_type",
	"exchange_name", "routing_key", "payload", "content_type",
	"retry_count", "max_retries", "last_error",
	"created_at", "updated_at", "next_retry_at",
}

// OutboxRepository keeps unpublished change events in PostgreSQL.
type OutboxRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn postgres.GenericConn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert queues an event. Queuing the same event id twice is a no-op.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	query, args, err := r.sb.Insert(outboxTable).
		SetMap(map[string]any{
			"event_id":      msg.EventID,
			"event_type":    msg.EventType,
			"exchange_name": msg.ExchangeName,
			"routing_key":   msg.RoutingKey,
			"payload":       msg.Payload,
			"content_type":  msg.ContentType,
			"retry_count":   msg.RetryCount,
			"max_retries":   msg.MaxRetries,
			"last_error":    msg.LastError,
			"created_at":    msg.CreatedAt,
			"updated_at":    msg.UpdatedAt,
			"next_retry_at": msg.NextRetryAt,
		}).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to queue event %s: %w", msg.EventID, err)
	}

	return nil
}

// ListDue returns messages whose next attempt is at or before now.
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	query, args, err := r.sb.Select(messageColumns...).
		From(outboxTable).
		Where(sq.LtOrEq{"next_retry_at": now}).
		Where("retry_count < max_retries").
		OrderBy("next_retry_at", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due events: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to read due events: %w", err)
	}

	return messages, nil
}

// MarkPublished drops an event the broker has accepted.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	query, args, err := r.sb.Delete(outboxTable).
		Where(sq.Eq{"event_id": eventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark event %s published: %w", eventID, err)
	}

	return nil
}

// Reschedule persists the attempt counter, cause and next due time of a failed publish.
func (r *OutboxRepository) Reschedule(ctx context.Context, msg outbox.OutboxMessage) error {
	query, args, err := r.sb.Update(outboxTable).
		SetMap(map[string]any{
			"retry_count":   msg.RetryCount,
			"last_error":    msg.LastError,
			"next_retry_at": msg.NextRetryAt,
			"updated_at":    msg.UpdatedAt,
		}).
		Where(sq.Eq{"event_id": msg.EventID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reschedule event %s: %w", msg.EventID, err)
	}

	return nil
}

func scanMessage(row pgx.CollectableRow) (outbox.OutboxMessage, error) {
	var m outbox.OutboxMessage
	err := row.Scan(
		&m.ID, &m.EventID, &m.EventType,
		&m.ExchangeName, &m.RoutingKey, &m.Payload, &m.ContentType,
		&m.RetryCount, &m.MaxRetries, &m.LastError,
		&m.CreatedAt, &m.UpdatedAt, &m.NextRetryAt,
	)

	return m, err
}
