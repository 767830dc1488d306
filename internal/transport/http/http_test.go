package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/remote/fakeremote"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/price"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/chatsvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/notifysvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/ordersvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/syncengine"
)

const farmerID int64 = 11

type fixture struct {
	remote    *fakeremote.Remote
	engine    *syncengine.Engine
	transport *HTTPTransport
	server    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sess := &session.Session{AccountID: farmerID, Role: role.Farmer}
	remote := &fakeremote.Remote{
		FetchOrdersFunc: func(context.Context, int64) ([]order.Order, error) {
			return []order.Order{{
				ID:          1,
				OrderNumber: "ORD-1",
				OrderedAt:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Items: []orderitem.OrderItem{
					{ID: 100, OrderID: 1, SellerID: farmerID, Quantity: 2, UnitPrice: mustAmount("10.50"), Status: orderitem.StatusPending},
					{ID: 101, OrderID: 1, SellerID: 12, Quantity: 1, UnitPrice: mustAmount("99.00"), Status: orderitem.StatusPending},
				},
			}}, nil
		},
		SendMessageFunc: func(_ context.Context, receiverID int64, body string) (conversation.Message, error) {
			return conversation.Message{ID: 7, SenderID: farmerID, ReceiverID: receiverID, Body: body, CreatedAt: time.Now()}, nil
		},
	}

	notify := notifysvc.MustNewNotifyService()
	orders := ordersvc.MustNewOrderService(
		ordersvc.WithRemote(remote),
		ordersvc.WithSession(sess),
		ordersvc.WithNotifier(notify),
	)
	chats := chatsvc.MustNewChatService(
		chatsvc.WithRemote(remote),
		chatsvc.WithSession(sess),
		chatsvc.WithNotifier(notify),
	)
	engine := syncengine.MustNewEngine(
		syncengine.WithRemote(remote),
		syncengine.WithStores(orders, chats),
		syncengine.WithSession(sess),
		syncengine.WithNotifier(notify),
		syncengine.WithIntervals(0, 0),
	)
	t.Cleanup(engine.Stop)

	transport := NewHTTPTransport(sess, orders, chats, engine, notify)
	transport.RegisterRoutes()

	server := httptest.NewServer(transport.Handler())
	t.Cleanup(server.Close)

	return &fixture{remote: remote, engine: engine, transport: transport, server: server}
}

func mustAmount(s string) price.Amount {
	a, err := price.Parse(s)
	if err != nil {
		panic(err)
	}

	return a
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)

	return resp, out
}

func TestOrdersFlow(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/orders/refresh", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/orders?status=pending&sortBy=total", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orders, ok := body["orders"].([]any)
	require.True(t, ok)
	require.Len(t, orders, 1)

	first := orders[0].(map[string]any)
	assert.Equal(t, "21", first["total"], "only the farmer's own item counts")
	assert.Len(t, first["items"], 1)

	resp, body = f.do(t, http.MethodPut, "/api/orders/items/100/status", `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])

	resp, body = f.do(t, http.MethodPut, "/api/orders/items/100/status", `{"status":"pending"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, body["retryable"])

	resp, _ = f.do(t, http.MethodPut, "/api/orders/items/101/status", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, 1, f.remote.Calls("UpdateItemStatus"))

	resp, body = f.do(t, http.MethodGet, "/api/orders/items/100/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["history"], "no audit store configured")

	resp, _ = f.do(t, http.MethodGet, "/api/orders/items/555/history", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrdersBadInput(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/orders?status=shipped", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/orders?sortBy=name", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/orders/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/orders/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/orders/items/100/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatusRemoteFailures(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/orders/view/enter", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	f.remote.UpdateItemStatusFunc = func(context.Context, int64, orderitem.Status) error {
		return errs.ErrNetworkFailure
	}
	resp, body := f.do(t, http.MethodPut, "/api/orders/items/100/status", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, true, body["retryable"])

	f.remote.UpdateItemStatusFunc = func(context.Context, int64, orderitem.Status) error {
		return errs.ErrRateLimited
	}
	resp, body = f.do(t, http.MethodPut, "/api/orders/items/100/status", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, false, body["retryable"])

	resp, body = f.do(t, http.MethodGet, "/api/orders/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	item := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "pending", item["status"], "failed writes leave the item untouched")
}

func TestConversations(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/conversations/42/messages", `{"body":"  hello  "}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "hello", body["body"])

	resp, _ = f.do(t, http.MethodPost, "/api/conversations/42/messages", `{"body":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/conversations/42/messages", `{"body":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/conversations/42", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["messages"], 1)
	assert.EqualValues(t, 0, body["unreadCount"])

	resp, _ = f.do(t, http.MethodGet, "/api/conversations/43", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["conversations"], 1)

	resp, _ = f.do(t, http.MethodPost, "/api/conversations/42/open", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/conversations/42/close", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSyncStatus(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/messaging/enter", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	targets, ok := body["targets"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, targets)
	assert.Equal(t, syncengine.KeyConversations, targets[0].(map[string]any)["key"])

	resp, _ = f.do(t, http.MethodPost, "/api/messaging/leave", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestShutdown_EndsOpenEventStreams(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = f.transport.server.Serve(ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, f.transport.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)

	_, err = io.ReadAll(resp.Body)
	assert.NoError(t, err, "the stream is terminated cleanly")
}
