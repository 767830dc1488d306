// Package fakeremote is an in-memory stand-in for the marketplace API used in tests.
package fakeremote

import (
	"context"
	"sync"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
)

// Remote answers each call with the matching hook. A nil hook returns zero values.
type Remote struct {
	FetchOrdersFunc        func(ctx context.Context, sellerID int64) ([]order.Order, error)
	UpdateItemStatusFunc   func(ctx context.Context, itemID int64, status orderitem.Status) error
	FetchConversationsFunc func(ctx context.Context, accountID int64) ([]conversation.Summary, error)
	FetchThreadFunc        func(ctx context.Context, counterpartID int64) (conversation.Thread, error)
	SendMessageFunc        func(ctx context.Context, receiverID int64, body string) (conversation.Message, error)

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times the named method was invoked.
func (r *Remote) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls[method]
}

func (r *Remote) record(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[method]++
}

func (r *Remote) FetchOrdersForSeller(ctx context.Context, sellerID int64) ([]order.Order, error) {
	r.record("FetchOrdersForSeller")
	if r.FetchOrdersFunc == nil {
		return nil, nil
	}

	return r.FetchOrdersFunc(ctx, sellerID)
}

func (r *Remote) UpdateItemStatus(ctx context.Context, itemID int64, status orderitem.Status) error {
	r.record("UpdateItemStatus")
	if r.UpdateItemStatusFunc == nil {
		return nil
	}

	return r.UpdateItemStatusFunc(ctx, itemID, status)
}

func (r *Remote) FetchConversations(ctx context.Context, accountID int64) ([]conversation.Summary, error) {
	r.record("FetchConversations")
	if r.FetchConversationsFunc == nil {
		return nil, nil
	}

	return r.FetchConversationsFunc(ctx, accountID)
}

func (r *Remote) FetchThread(ctx context.Context, counterpartID int64) (conversation.Thread, error) {
	r.record("FetchThread")
	if r.FetchThreadFunc == nil {
		return conversation.Thread{}, nil
	}

	return r.FetchThreadFunc(ctx, counterpartID)
}

func (r *Remote) SendMessage(ctx context.Context, receiverID int64, body string) (conversation.Message, error) {
	r.record("SendMessage")
	if r.SendMessageFunc == nil {
		return conversation.Message{}, nil
	}

	return r.SendMessageFunc(ctx, receiverID, body)
}
