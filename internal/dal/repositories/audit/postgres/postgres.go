package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/auditlog"
)

// AuditRepository implements the item status audit repository for PostgreSQL.
type AuditRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(conn postgres.GenericConn) *AuditRepository {
	return &AuditRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveStatusChanges saves audit entries using squirrel bulk insert.
func (r *AuditRepository) SaveStatusChanges(
	ctx context.Context,
	changes []auditlog.ItemStatusChange,
) error {
	if len(changes) == 0 {
		return nil
	}

	builder := r.sb.Insert("audit_log_item_status").
		Columns(
			"order_id",
			"order_item_id",
			"seller_id",
			"from_status",
			"to_status",
			"created_at",
		)

	for _, change := range changes {
		builder = builder.Values(
			change.OrderID,
			change.OrderItemID,
			change.SellerID,
			change.FromStatus,
			change.ToStatus,
			change.CreatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit insert query: %w", err)
	}

	_, err = r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to bulk insert audit entries: %w", err)
	}

	return nil
}

// ListByItem returns the status history of one item, oldest first.
func (r *AuditRepository) ListByItem(ctx context.Context, itemID int64) ([]auditlog.ItemStatusChange, error) {
	query, args, err := r.sb.Select(
		"id",
		"order_id",
		"order_item_id",
		"seller_id",
		"from_status",
		"to_status",
		"created_at",
	).
		From("audit_log_item_status").
		Where(sq.Eq{"order_item_id": itemID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	changes := make([]auditlog.ItemStatusChange, 0)
	for rows.Next() {
		var change auditlog.ItemStatusChange
		if err := rows.Scan(
			&change.ID,
			&change.OrderID,
			&change.OrderItemID,
			&change.SellerID,
			&change.FromStatus,
			&change.ToStatus,
			&change.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		changes = append(changes, change)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return changes, nil
}
