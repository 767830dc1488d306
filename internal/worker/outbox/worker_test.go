package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/backoff"
)

type fakeRepo struct {
	mu          sync.Mutex
	pending     []outbox.OutboxMessage
	published   []string
	rescheduled map[string]outbox.OutboxMessage
}

func (r *fakeRepo) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, msg)

	return nil
}

func (r *fakeRepo) ListDue(_ context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []outbox.OutboxMessage
	for _, m := range r.pending {
		if !m.NextRetryAt.After(now) && !m.Exhausted() && len(due) < limit {
			due = append(due, m)
		}
	}

	return due, nil
}

func (r *fakeRepo) MarkPublished(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, eventID)

	return nil
}

func (r *fakeRepo) Reschedule(_ context.Context, msg outbox.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescheduled[msg.EventID] = msg

	return nil
}

type fakePublisher struct {
	fail map[string]bool
	sent []string
}

func (p *fakePublisher) Publish(_ context.Context, _, routingKey, _, messageID string, _ []byte) error {
	if p.fail[messageID] {
		return errors.New("channel closed")
	}
	p.sent = append(p.sent, routingKey)

	return nil
}

func newTestWorker(repo *fakeRepo, pub *fakePublisher) *Worker {
	return &Worker{
		outboxRepo: repo,
		publisher:  pub,
		batchSize:  10,
		backoff:    backoff.Policy{Base: 30 * time.Second, Max: time.Hour},
	}
}

func TestWorker_ProcessMessages(t *testing.T) {
	repo := &fakeRepo{
		pending: []outbox.OutboxMessage{
			{ID: 1, EventID: "ok", RoutingKey: "marketplace.item_status_changed", MaxRetries: 5},
			{ID: 2, EventID: "bad", RoutingKey: "marketplace.item_status_changed", RetryCount: 1, MaxRetries: 5},
			{ID: 3, EventID: "later", NextRetryAt: time.Now().Add(time.Hour), MaxRetries: 5},
		},
		rescheduled: make(map[string]outbox.OutboxMessage),
	}
	pub := &fakePublisher{fail: map[string]bool{"bad": true}}

	before := time.Now()
	newTestWorker(repo, pub).processMessages(context.Background())

	assert.Equal(t, []string{"ok"}, repo.published)
	assert.Equal(t, []string{"marketplace.item_status_changed"}, pub.sent)

	require.Contains(t, repo.rescheduled, "bad")
	retried := repo.rescheduled["bad"]
	assert.Equal(t, 2, retried.RetryCount)
	assert.Equal(t, "channel closed", retried.LastError)
	assert.WithinDuration(t, before.Add(time.Minute), retried.NextRetryAt, 5*time.Second)
	assert.False(t, retried.Exhausted())
}

func TestWorker_LastAttemptExhaustsEvent(t *testing.T) {
	repo := &fakeRepo{
		pending: []outbox.OutboxMessage{
			{ID: 1, EventID: "bad", RetryCount: 4, MaxRetries: 5},
		},
		rescheduled: make(map[string]outbox.OutboxMessage),
	}
	w := newTestWorker(repo, &fakePublisher{fail: map[string]bool{"bad": true}})

	w.processMessages(context.Background())

	retried := repo.rescheduled["bad"]
	assert.Equal(t, 5, retried.RetryCount)
	assert.True(t, retried.Exhausted())
	assert.Empty(t, repo.published)
}
