package notifysvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
)

type memOutbox struct {
	inserted []outbox.OutboxMessage
}

func (m *memOutbox) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	m.inserted = append(m.inserted, msg)

	return nil
}

func (m *memOutbox) ListDue(context.Context, time.Time, int) ([]outbox.OutboxMessage, error) {
	return m.inserted, nil
}

func (m *memOutbox) MarkPublished(context.Context, string) error { return nil }

func (m *memOutbox) Reschedule(context.Context, outbox.OutboxMessage) error { return nil }

func TestNotifyService_BroadcastFanOut(t *testing.T) {
	svc := MustNewNotifyService(WithBufferSize(4))

	first, cancelFirst := svc.Subscribe()
	defer cancelFirst()
	second, cancelSecond := svc.Subscribe()
	defer cancelSecond()

	ev := event.New(event.TypeUnreadChanged, event.UnreadChanged{Total: 3})
	svc.Broadcast(ev)

	assert.Equal(t, ev.ID, (<-first).ID)
	assert.Equal(t, ev.ID, (<-second).ID)
}

func TestNotifyService_BroadcastNeverBlocks(t *testing.T) {
	svc := MustNewNotifyService(WithBufferSize(1))

	ch, cancel := svc.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			svc.Broadcast(event.New(event.TypeOrdersRefreshed, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}

	assert.Len(t, ch, 1)
}

func TestNotifyService_CancelClosesChannel(t *testing.T) {
	svc := MustNewNotifyService()

	ch, cancel := svc.Subscribe()
	require.Equal(t, 1, svc.Subscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, svc.Subscribers())

	svc.Broadcast(event.New(event.TypeOrdersRefreshed, nil))
}

func TestNotifyService_NotifyStoresOutboxRow(t *testing.T) {
	repo := &memOutbox{}
	svc := MustNewNotifyService(WithOutbox(repo, outbox.Route{
		ExchangeName:     "marketplace",
		RoutingKeyPrefix: "sync-agent",
		MaxRetries:       5,
	}))

	ev := event.New(event.TypeSyncWarning, event.SyncWarning{Target: "orders", ConsecutiveFailures: 3})
	require.NoError(t, svc.Notify(context.Background(), ev))

	require.Len(t, repo.inserted, 1)
	msg := repo.inserted[0]
	assert.Equal(t, ev.ID.String(), msg.EventID)
	assert.Equal(t, "sync-agent.sync.warning", msg.RoutingKey)
	assert.Equal(t, "marketplace", msg.ExchangeName)
	assert.Equal(t, 5, msg.MaxRetries)
	assert.Contains(t, string(msg.Payload), `"consecutiveFailures":3`)
}
