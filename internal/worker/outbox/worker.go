package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/backoff"
)

// publisher sends a serialized event to the broker.
type publisher interface {
	Publish(ctx context.Context, exchange, routingKey, contentType, messageID string, body []byte) error
}

// Worker processes messages from the outbox table.
type Worker struct {
	outboxRepo   ioutboxrepo.IOutboxRepository
	publisher    publisher
	pollInterval time.Duration
	batchSize    int
	backoff      backoff.Policy
	stopCh       chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	publisher publisher,
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 10
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	retryIntervalSeconds := viper.GetInt("rabbitmq.outbox.retry_interval_seconds")
	if retryIntervalSeconds == 0 {
		retryIntervalSeconds = 30
	}

	return &Worker{
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		backoff: backoff.Policy{
			Base: time.Duration(retryIntervalSeconds) * time.Second,
			Max:  time.Hour,
		},
		stopCh: make(chan struct{}),
	}
}

// Start begins processing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.processMessages(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

// processMessages publishes the due batch; failures are rescheduled with backoff.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.outboxRepo.ListDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to list due outbox events", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Debug("Publishing outbox events", "count", len(messages))

	for _, msg := range messages {
		err := w.publisher.Publish(ctx, msg.ExchangeName, msg.RoutingKey, msg.ContentType, msg.EventID, msg.Payload)
		if err != nil {
			w.reschedule(ctx, msg, err)

			continue
		}

		if err := w.outboxRepo.MarkPublished(ctx, msg.EventID); err != nil {
			// The event stays queued and is published again; consumers dedupe on the message id.
			slog.Error("Failed to mark outbox event published", "event_id", msg.EventID, "error", err)

			continue
		}

		slog.Debug("Outbox event published", "event_id", msg.EventID, "event_type", msg.EventType)
	}
}

func (w *Worker) reschedule(ctx context.Context, msg outbox.OutboxMessage, cause error) {
	// 30s, 60s, 120s, ... with the default retry interval.
	retried := msg.Retry(cause, w.backoff.Next(time.Now(), msg.RetryCount+1))

	if retried.Exhausted() {
		slog.Error("Outbox event exhausted its delivery attempts",
			"event_id", msg.EventID,
			"event_type", msg.EventType,
			"attempts", retried.RetryCount,
			"error", cause,
		)
	} else {
		slog.Warn("Failed to publish outbox event, will retry",
			"event_id", msg.EventID,
			"event_type", msg.EventType,
			"retry_count", retried.RetryCount,
			"next_retry", retried.NextRetryAt,
			"error", cause,
		)
	}

	if err := w.outboxRepo.Reschedule(ctx, retried); err != nil {
		slog.Error("Failed to reschedule outbox event", "event_id", msg.EventID, "error", err)
	}
}
