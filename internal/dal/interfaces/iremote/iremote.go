package iremote

import (
	"context"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
)

// IRemote is the marketplace API: the single source of truth for orders and conversations.
// Every method may fail with errs.ErrRateLimited separately from other failures.
type IRemote interface {
	// FetchOrdersForSeller returns a full snapshot of the orders visible to the account.
	FetchOrdersForSeller(ctx context.Context, sellerID int64) ([]order.Order, error)

	// UpdateItemStatus is the only mutation of order state.
	UpdateItemStatus(ctx context.Context, itemID int64, status orderitem.Status) error

	// FetchConversations returns conversation summaries for the account.
	FetchConversations(ctx context.Context, accountID int64) ([]conversation.Summary, error)

	// FetchThread returns the full history of one conversation.
	FetchThread(ctx context.Context, counterpartID int64) (conversation.Thread, error)

	// SendMessage sends a message and returns it as stored by the remote.
	SendMessage(ctx context.Context, receiverID int64, body string) (conversation.Message, error)
}
