package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
)

func newTestClient(t *testing.T, r role.Role, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return MustNewClient(
		WithBaseURL(srv.URL),
		WithSession(&session.Session{AccountID: 11, Role: r, Token: "tkn"}),
		WithTimeout(time.Second),
	)
}

func TestFetchOrdersForSeller_FarmerShape(t *testing.T) {
	client := newTestClient(t, role.Farmer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/farmer", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"orders":[{
			"order_id": 5,
			"order_number": "ORD-5",
			"buyer_name": "Meena",
			"buyer_id": 21,
			"delivery_address": "Pune",
			"contact_number": "99",
			"order_date": "2024-03-01T10:15:00.123456",
			"items": [
				{"id": 50, "product_id": 3, "product_name": "Rice", "quantity": 2,
				 "price_per_unit": 40.5, "total_price": 81.0, "status": "pending",
				 "created_at": "2024-03-01T10:15:00"},
				{"id": 51, "product_id": 4, "product_name": "Dal", "quantity": 1,
				 "price_per_unit": "oops", "total_price": 10, "status": "ACCEPTED",
				 "created_at": "2024-03-01T10:15:00"}
			]
		}]}`))
	})

	orders, err := client.FetchOrdersForSeller(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, int64(5), o.ID)
	assert.Equal(t, "ORD-5", o.OrderNumber)
	assert.Equal(t, int64(21), o.BuyerID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 123456000, time.UTC), o.OrderedAt)
	require.Len(t, o.Items, 2)

	first := o.Items[0]
	assert.Equal(t, int64(11), first.SellerID, "seller view items belong to the session account")
	assert.Equal(t, int64(5), first.OrderID)
	assert.True(t, first.LineTotal().Equal(decimal.NewFromInt(81)))

	second := o.Items[1]
	assert.Equal(t, orderitem.StatusAccepted, second.Status)
	assert.False(t, second.UnitPrice.Valid)
	assert.True(t, second.LineTotal().IsZero())
}

func TestFetchOrdersForSeller_AdminShape(t *testing.T) {
	client := newTestClient(t, role.Admin, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)

		_, _ = w.Write([]byte(`{"orders":[{
			"id": 8, "order_number": "ORD-8", "buyer_id": null, "buyer_name": "Ghost",
			"total_amount": "120.00", "created_at": "2024-01-02T03:04:05",
			"items": [
				{"id": 80, "order_id": 8, "farmer_id": 31, "farmer_name": "Kiran",
				 "quantity": 3, "price_per_unit": "40.00", "total_price": "120.00", "status": "completed"}
			]
		}]}`))
	})

	orders, err := client.FetchOrdersForSeller(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, int64(8), o.ID)
	assert.Zero(t, o.BuyerID)
	assert.True(t, o.RemoteTotal.Valid)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(31), o.Items[0].SellerID)
	assert.Equal(t, "Kiran", o.Items[0].SellerName)
	assert.True(t, o.Items[0].LineTotal().Equal(decimal.NewFromInt(120)))
}

func TestUpdateItemStatus(t *testing.T) {
	client := newTestClient(t, role.Farmer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/orders/item/50/status", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "accepted", body["status"])

		_, _ = w.Write([]byte(`{"message":"Order item status updated successfully!"}`))
	})

	require.NoError(t, client.UpdateItemStatus(context.Background(), 50, orderitem.StatusAccepted))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: errs.ErrRateLimited},
		{name: "unauthorized", status: http.StatusUnauthorized, want: errs.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: errs.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: errs.ErrNotFound},
		{name: "bad request", status: http.StatusBadRequest, want: errs.ErrRemoteRejected},
		{name: "server error", status: http.StatusInternalServerError, want: errs.ErrNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, role.Farmer, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			err := client.UpdateItemStatus(context.Background(), 1, orderitem.StatusAccepted)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestTimeoutIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := MustNewClient(WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))

	_, err := client.FetchConversations(context.Background(), 1)
	assert.ErrorIs(t, err, errs.ErrNetworkFailure)
}

func TestFetchConversationsAndThread(t *testing.T) {
	client := newTestClient(t, role.Buyer, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chats/conversations":
			_, _ = w.Write([]byte(`{"conversations":[{
				"user": {"id": 42, "username": "kiran", "full_name": "", "role": "farmer"},
				"latest_message": {"message": "hi", "sender_id": 42, "created_at": "2024-03-01T10:00:00"},
				"unread_count": 2
			}]}`))
		case "/api/chats/42":
			_, _ = w.Write([]byte(`{
				"other_user": {"id": 42, "role": "farmer", "full_name": "Kiran Patil"},
				"messages": [
					{"id": 6, "sender_id": 42, "receiver_id": 11, "message": "hi", "is_read": true, "created_at": "2024-03-01T10:00:00"}
				]
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	summaries, err := client.FetchConversations(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "kiran", summaries[0].Counterpart.Name)
	assert.Equal(t, role.Farmer, summaries[0].Counterpart.Role)
	assert.Equal(t, 2, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].Latest)
	assert.Equal(t, "hi", summaries[0].Latest.Body)

	thread, err := client.FetchThread(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Kiran Patil", thread.Counterpart.Name)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, int64(6), thread.Messages[0].ID)
	assert.True(t, thread.Messages[0].Read)
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, role.Buyer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/send", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 42, body["receiver_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Message sent successfully!","chat":{
			"id": 77, "sender_id": 11, "receiver_id": 42, "message": "hello", "is_read": false,
			"created_at": "2024-03-01T10:00:00"}}`))
	})

	msg, err := client.SendMessage(context.Background(), 42, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(77), msg.ID)
	assert.Equal(t, int64(11), msg.SenderID)
	assert.Equal(t, "hello", msg.Body)
}
