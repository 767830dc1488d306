package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
)

// CursorRepository stores conversation high-water marks in PostgreSQL.
type CursorRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewCursorRepository creates a new cursor repository.
func NewCursorRepository(conn postgres.GenericConn) *CursorRepository {
	return &CursorRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Load returns the last seen message id per counterpart for the account.
func (r *CursorRepository) Load(ctx context.Context, accountID int64) (map[int64]int64, error) {
	query, args, err := r.sb.Select("counterpart_id", "last_seen_message_id").
		From("conversation_cursors").
		Where(sq.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cursor select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[int64]int64)
	for rows.Next() {
		var counterpartID, lastSeen int64
		if err := rows.Scan(&counterpartID, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan cursor: %w", err)
		}
		cursors[counterpartID] = lastSeen
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cursors: %w", err)
	}

	return cursors, nil
}

// Advance upserts the cursor; a stored value is never lowered.
func (r *CursorRepository) Advance(ctx context.Context, accountID, counterpartID, lastSeenMessageID int64) error {
	query, args, err := r.sb.Insert("conversation_cursors").
		Columns("account_id", "counterpart_id", "last_seen_message_id", "updated_at").
		Values(accountID, counterpartID, lastSeenMessageID, time.Now()).
		Suffix(`ON CONFLICT (account_id, counterpart_id) DO UPDATE
			SET last_seen_message_id = GREATEST(conversation_cursors.last_seen_message_id, EXCLUDED.last_seen_message_id),
			    updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build cursor upsert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert cursor: %w", err)
	}

	return nil
}
