package icursorrepo

import "context"

// ICursorRepository persists per-conversation high-water marks across sessions.
type ICursorRepository interface {
	// Load returns last seen message ids keyed by counterpart id.
	Load(ctx context.Context, accountID int64) (map[int64]int64, error)

	// Advance stores lastSeenMessageID unless a higher value is already stored.
	Advance(ctx context.Context, accountID, counterpartID, lastSeenMessageID int64) error
}
