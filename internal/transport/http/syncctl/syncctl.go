package syncctl

import (
	"context"
	"net/http"
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/syncengine"
)

// Engine is the part of the sync engine driven by view lifecycle requests.
type Engine interface {
	EnterOrders(ctx context.Context) (syncengine.Subscription, error)
	LeaveOrders()
	RefreshOrders(ctx context.Context) error
	EnterMessaging() syncengine.Subscription
	LeaveMessaging()
	Status() []syncengine.TargetStatus
}

type syncedAt interface {
	SyncedAt() time.Time
}

type unread interface {
	UnreadTotal() int
}

type statusResponse struct {
	Targets        []syncengine.TargetStatus `json:"targets"`
	OrdersSyncedAt time.Time                 `json:"ordersSyncedAt"`
	UnreadTotal    int                       `json:"unreadTotal"`
}

// EnterOrders activates the order list and fetches it once.
func EnterOrders(w http.ResponseWriter, r *http.Request, engine Engine) {
	if _, err := engine.EnterOrders(r.Context()); err != nil {
		response.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func LeaveOrders(w http.ResponseWriter, _ *http.Request, engine Engine) {
	engine.LeaveOrders()
	w.WriteHeader(http.StatusNoContent)
}

// RefreshOrders is the pull-to-refresh path. A call inside a backoff window succeeds without a fetch.
func RefreshOrders(w http.ResponseWriter, r *http.Request, engine Engine) {
	if err := engine.RefreshOrders(r.Context()); err != nil {
		response.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func EnterMessaging(w http.ResponseWriter, _ *http.Request, engine Engine) {
	engine.EnterMessaging()
	w.WriteHeader(http.StatusNoContent)
}

func LeaveMessaging(w http.ResponseWriter, _ *http.Request, engine Engine) {
	engine.LeaveMessaging()
	w.WriteHeader(http.StatusNoContent)
}

// Status reports every sync target for the sync indicator.
func Status(w http.ResponseWriter, _ *http.Request, engine Engine, orders syncedAt, chats unread) {
	response.JSON(w, http.StatusOK, statusResponse{
		Targets:        engine.Status(),
		OrdersSyncedAt: orders.SyncedAt(),
		UnreadTotal:    chats.UnreadTotal(),
	})
}
