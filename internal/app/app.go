package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/rabbitmq"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/remote"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/uow"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/otel"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/chatsvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/notifysvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/ordersvc"
	httptransport "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http"
	outboxworker "github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/outbox"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/syncengine"
)

// App represents the application.
type App struct {
	session        *session.Session
	chatSvc        *chatsvc.ChatService
	engine         *syncengine.Engine
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	otel           *otel.OtelController
}

// MustNewApp creates a new application for the session carried by remote.token.
func MustNewApp() *App {
	sess, err := session.FromToken(viper.GetString("remote.token"))
	if err != nil {
		panic("failed to start session: " + err.Error())
	}
	if sess.Expired(time.Now()) {
		panic("failed to start session: remote.token has expired")
	}
	slog.Info("Session started", "account_id", sess.AccountID, "role", sess.Role)

	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	route := outbox.Route{
		ExchangeName:     viper.GetString("rabbitmq.exchange"),
		RoutingKeyPrefix: viper.GetString("rabbitmq.routing_key_prefix"),
		MaxRetries:       viper.GetInt("rabbitmq.outbox.max_retries"),
	}
	// Pool-bound repositories for work outside a transaction.
	repos := uow.NewUnitOfWork(postgresClient)
	outboxRepo := repos.OutboxRepository()

	notifySvc := notifysvc.MustNewNotifyService(
		notifysvc.WithOutbox(outboxRepo, route),
	)

	remoteClient := remote.MustNewClient(
		remote.WithSession(sess),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithRemote(remoteClient),
		ordersvc.WithSession(sess),
		ordersvc.WithNotifier(notifySvc),
		ordersvc.WithPostgresClient(postgresClient, route),
	)

	chatSvc := chatsvc.MustNewChatService(
		chatsvc.WithRemote(remoteClient),
		chatsvc.WithSession(sess),
		chatsvc.WithCursorRepository(repos.CursorRepository()),
		chatsvc.WithNotifier(notifySvc),
	)

	engine := syncengine.MustNewEngine(
		syncengine.WithRemote(remoteClient),
		syncengine.WithStores(orderSvc, chatSvc),
		syncengine.WithSession(sess),
		syncengine.WithNotifier(notifySvc),
	)

	transport := httptransport.NewHTTPTransport(sess, orderSvc, chatSvc, engine, notifySvc)
	transport.RegisterRoutes()

	return &App{
		session:        sess,
		chatSvc:        chatSvc,
		engine:         engine,
		transport:      transport,
		outboxWorker:   outboxworker.NewWorker(outboxRepo, rabbitClient),
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		otel:           otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if err := a.chatSvc.Restore(ctx); err != nil {
		slog.Error("Failed to restore conversation cursors", "error", err)
	}

	if err := a.engine.Bootstrap(ctx); err != nil {
		slog.Error("Initial sync incomplete", "error", err)
	}

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go a.outboxWorker.Start(ctx)

	<-stop
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.engine.Stop()

	a.outboxWorker.Stop()
	cancelWorkers()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	// Exporting buffered spans gets its own budget so a slow HTTP drain cannot starve it.
	otelCtx, cancelOtel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelOtel()

	if err := a.otel.Shutdown(otelCtx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Session ended", "account_id", a.session.AccountID)
	slog.Info("Application shutdown complete")
}
