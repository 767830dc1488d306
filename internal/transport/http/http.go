package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/auditlog"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/ordersvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/conversations"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/events"
	getorder "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/get_order"
	itemhistory "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/item_history"
	listorders "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/list_orders"
	sendmessage "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/send_message"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/syncctl"
	updateitemstatus "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/update_item_status"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/syncengine"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/pkg/http/middleware/trace"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/pkg/logger"
)

type orderService interface {
	Orders(query order.QueryOrdersModel) []ordersvc.View
	Order(id int64) (ordersvc.View, error)
	RequestStatusChange(ctx context.Context, itemID int64, target orderitem.Status, actorID int64) (orderitem.OrderItem, error)
	ItemHistory(ctx context.Context, itemID int64) ([]auditlog.ItemStatusChange, error)
	SyncedAt() time.Time
}

type chatService interface {
	Conversations() []conversation.Summary
	Conversation(counterpartID int64) (conversation.Conversation, error)
	UnreadTotal() int
	Send(ctx context.Context, receiverID int64, body string) (conversation.Message, error)
}

type syncEngine interface {
	syncctl.Engine
	OpenConversation(counterpartID int64) syncengine.Subscription
	CloseConversation(counterpartID int64)
}

type eventSource interface {
	Subscribe() (<-chan event.Event, func())
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	session *session.Session
	orders  orderService
	chats   chatService
	engine  syncEngine
	events  eventSource

	// streams is cancelled when the server begins shutting down; event streams end with it.
	streams      context.Context
	closeStreams context.CancelFunc
}

func NewHTTPTransport(
	sess *session.Session,
	orders orderService,
	chats chatService,
	engine syncEngine,
	events eventSource,
) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	streams, closeStreams := context.WithCancel(context.Background())
	server.RegisterOnShutdown(closeStreams)

	return &HTTPTransport{
		server:       server,
		router:       router,
		session:      sess,
		orders:       orders,
		chats:        chats,
		engine:       engine,
		events:       events,
		streams:      streams,
		closeStreams: closeStreams,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mostly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/refresh", h.refreshOrders)
		r.Post("/orders/view/enter", h.enterOrders)
		r.Post("/orders/view/leave", h.leaveOrders)
		r.Put("/orders/items/{id}/status", h.updateItemStatus)
		r.Get("/orders/items/{id}/history", h.itemHistory)

		r.Get("/conversations", h.listConversations)
		r.Get("/conversations/{id}", h.getConversation)
		r.Post("/conversations/{id}/open", h.openConversation)
		r.Post("/conversations/{id}/close", h.closeConversation)
		r.Post("/conversations/{id}/messages", h.sendMessage)

		r.Post("/messaging/enter", h.enterMessaging)
		r.Post("/messaging/leave", h.leaveMessaging)

		r.Get("/sync/status", h.syncStatus)
		r.Get("/events", h.streamEvents)
	})
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) refreshOrders(w http.ResponseWriter, r *http.Request) {
	syncctl.RefreshOrders(w, r, h.engine)
}

func (h *HTTPTransport) enterOrders(w http.ResponseWriter, r *http.Request) {
	syncctl.EnterOrders(w, r, h.engine)
}

func (h *HTTPTransport) leaveOrders(w http.ResponseWriter, r *http.Request) {
	syncctl.LeaveOrders(w, r, h.engine)
}

func (h *HTTPTransport) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	var actorID int64
	if h.session != nil {
		actorID = h.session.AccountID
	}
	updateitemstatus.UpdateItemStatus(w, r, h.orders, actorID)
}

func (h *HTTPTransport) itemHistory(w http.ResponseWriter, r *http.Request) {
	itemhistory.ItemHistory(w, r, h.orders)
}

func (h *HTTPTransport) listConversations(w http.ResponseWriter, r *http.Request) {
	conversations.ListConversations(w, r, h.chats)
}

func (h *HTTPTransport) getConversation(w http.ResponseWriter, r *http.Request) {
	conversations.GetConversation(w, r, h.chats)
}

func (h *HTTPTransport) openConversation(w http.ResponseWriter, r *http.Request) {
	conversations.OpenConversation(w, r, h.engine)
}

func (h *HTTPTransport) closeConversation(w http.ResponseWriter, r *http.Request) {
	conversations.CloseConversation(w, r, h.engine)
}

func (h *HTTPTransport) sendMessage(w http.ResponseWriter, r *http.Request) {
	sendmessage.SendMessage(w, r, h.chats)
}

func (h *HTTPTransport) enterMessaging(w http.ResponseWriter, r *http.Request) {
	syncctl.EnterMessaging(w, r, h.engine)
}

func (h *HTTPTransport) leaveMessaging(w http.ResponseWriter, r *http.Request) {
	syncctl.LeaveMessaging(w, r, h.engine)
}

func (h *HTTPTransport) syncStatus(w http.ResponseWriter, r *http.Request) {
	syncctl.Status(w, r, h.engine, h.orders, h.chats)
}

// streamEvents holds the connection open, so Shutdown would otherwise wait for every client to leave.
func (h *HTTPTransport) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stop := context.AfterFunc(h.streams, cancel)
	defer stop()

	events.Stream(w, r.WithContext(ctx), h.events)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
