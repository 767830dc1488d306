package notifysvc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/viper"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
)

// NotifyService fans change events out to in-process subscribers
// and, through Notify, to the outbox for delivery to the broker.
type NotifyService struct {
	outboxRepo ioutboxrepo.IOutboxRepository
	route      outbox.Route
	bufferSize int

	mu     sync.RWMutex
	subs   map[int]chan event.Event
	nextID int
}

// option is a function that configures the NotifyService.
type option func(*NotifyService)

// MustNewNotifyService creates a new NotifyService.
func MustNewNotifyService(opts ...option) *NotifyService {
	bufferSize := viper.GetInt("notify.buffer_size")
	if bufferSize <= 0 {
		bufferSize = 64
	}

	s := &NotifyService{
		bufferSize: bufferSize,
		subs:       make(map[int]chan event.Event),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// WithOutbox enables persisting notified events for the outbox worker.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(repo ioutboxrepo.IOutboxRepository, route outbox.Route) option {
	return func(s *NotifyService) {
		s.outboxRepo = repo
		s.route = route
	}
}

// WithBufferSize sets the per-subscriber channel capacity.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBufferSize(size int) option {
	return func(s *NotifyService) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel.
func (s *NotifyService) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, s.bufferSize)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Broadcast delivers ev to every subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (s *NotifyService) Broadcast(ev event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Subscriber buffer full, dropping event", "subscriber_id", id, "event_type", ev.Type)
		}
	}
}

// Notify broadcasts ev and stores it in the outbox.
func (s *NotifyService) Notify(ctx context.Context, ev event.Event) error {
	s.Broadcast(ev)

	if s.outboxRepo == nil {
		return nil
	}

	msg, err := outbox.FromEvent(ev, s.route)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.Insert(ctx, msg); err != nil {
		return fmt.Errorf("failed to store event in outbox: %w", err)
	}

	return nil
}

// Subscribers returns the number of active subscribers.
func (s *NotifyService) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.subs)
}
