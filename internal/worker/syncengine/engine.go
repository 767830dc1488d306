package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/iremote"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/backoff"
)

// ErrStaleSubscription is returned for a subscription whose target has been cancelled.
var ErrStaleSubscription = errors.New("stale subscription")

type orderStore interface {
	ApplySnapshot(ctx context.Context, orders []order.Order)
}

type chatStore interface {
	ApplyIncoming(ctx context.Context, counterpartID int64, messages []conversation.Message) (lastSeen int64, advanced bool)
	PersistCursor(ctx context.Context, counterpartID, lastSeen int64)
	ApplySummaries(ctx context.Context, summaries []conversation.Summary)
	SetCounterpart(c conversation.Counterpart)
	Open(counterpartID int64)
	Close(counterpartID int64)
}

type notifier interface {
	Notify(ctx context.Context, ev event.Event) error
}

// Engine is the only component that calls the remote API on a schedule.
// It owns cadence, backoff and stale-response protection for every sync target.
type Engine struct {
	remote   iremote.IRemote
	orders   orderStore
	chats    chatStore
	session  *session.Session
	notifier notifier
	now      func() time.Time

	threadInterval        time.Duration
	conversationsInterval time.Duration
	callTimeout           time.Duration
	backoff               backoff.Policy
	warningThreshold      int

	mu            sync.Mutex
	slots         []slot
	index         map[string]int
	messagingRefs int
	openThread    int64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// option is a function that configures the Engine.
type option func(*Engine)

// MustNewEngine creates a new Engine.
func MustNewEngine(opts ...option) *Engine {
	e := &Engine{
		now:                   time.Now,
		threadInterval:        durationOr("sync.thread_interval", 10*time.Second),
		conversationsInterval: durationOr("sync.conversations_interval", 30*time.Second),
		callTimeout:           durationOr("sync.call_timeout", 15*time.Second),
		backoff: backoff.Policy{
			Base: durationOr("sync.backoff.base", 10*time.Second),
			Max:  durationOr("sync.backoff.max", 5*time.Minute),
		},
		warningThreshold: viper.GetInt("sync.rate_limit_warning_threshold"),
		index:            make(map[string]int),
	}
	if e.warningThreshold <= 0 {
		e.warningThreshold = 3
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.remote == nil || e.orders == nil || e.chats == nil {
		panic("syncengine: remote, order store and chat store are required")
	}

	e.baseCtx, e.cancel = context.WithCancel(context.Background())

	return e
}

// WithRemote sets the remote API client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRemote(remote iremote.IRemote) option {
	return func(e *Engine) {
		e.remote = remote
	}
}

// WithStores sets the stores fed by the engine.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithStores(orders orderStore, chats chatStore) option {
	return func(e *Engine) {
		e.orders = orders
		e.chats = chats
	}
}

// WithSession sets the session the engine syncs for.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSession(sess *session.Session) option {
	return func(e *Engine) {
		e.session = sess
	}
}

// WithNotifier sets where rate-limit warnings are reported.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotifier(n notifier) option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithClock replaces the wall clock used for backoff deadlines.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIntervals overrides the polling cadence.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIntervals(thread, conversations time.Duration) option {
	return func(e *Engine) {
		e.threadInterval = thread
		e.conversationsInterval = conversations
	}
}

// WithCallTimeout bounds every remote call.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCallTimeout(timeout time.Duration) option {
	return func(e *Engine) {
		e.callTimeout = timeout
	}
}

// WithBackoff sets the rate-limit backoff policy and the consecutive count that raises a warning.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBackoff(policy backoff.Policy, warningThreshold int) option {
	return func(e *Engine) {
		e.backoff = policy
		if warningThreshold > 0 {
			e.warningThreshold = warningThreshold
		}
	}
}

// Bootstrap fetches orders and the conversation list concurrently at session start.
func (e *Engine) Bootstrap(ctx context.Context) error {
	ctx, span := otel.Tracer("service").Start(ctx, "SyncEngine.Bootstrap")
	defer span.End()

	orders := e.acquire(KeyOrders, kindOrders, 0, 0)
	conversations := e.acquire(KeyConversations, kindConversations, 0, 0)

	// A failure of one target must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		return e.Poll(ctx, orders)
	})
	g.Go(func() error {
		return e.Poll(ctx, conversations)
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to bootstrap sync: %w", err)
	}

	return nil
}

// EnterOrders activates the order list target and fetches it once.
func (e *Engine) EnterOrders(ctx context.Context) (Subscription, error) {
	sub := e.acquire(KeyOrders, kindOrders, 0, 0)

	return sub, e.Poll(ctx, sub)
}

// LeaveOrders cancels the order list target; an in-flight fetch is discarded.
func (e *Engine) LeaveOrders() {
	e.cancelKey(KeyOrders)
}

// RefreshOrders fetches the order list on demand.
func (e *Engine) RefreshOrders(ctx context.Context) error {
	return e.Poll(ctx, e.acquire(KeyOrders, kindOrders, 0, 0))
}

// EnterMessaging starts polling the conversation list while at least one messaging view is active.
func (e *Engine) EnterMessaging() Subscription {
	e.mu.Lock()
	e.messagingRefs++
	e.mu.Unlock()

	return e.acquire(KeyConversations, kindConversations, 0, e.conversationsInterval)
}

// LeaveMessaging releases one messaging view. The last one out stops all messaging targets.
func (e *Engine) LeaveMessaging() {
	e.mu.Lock()
	if e.messagingRefs == 0 {
		e.mu.Unlock()

		return
	}
	e.messagingRefs--
	last := e.messagingRefs == 0
	open := e.openThread
	e.mu.Unlock()

	if !last {
		return
	}

	e.cancelKey(KeyConversations)
	if open != 0 {
		e.CloseConversation(open)
	}
}

// OpenConversation switches the polled thread to counterpartID.
// The previously open thread is cancelled first.
func (e *Engine) OpenConversation(counterpartID int64) Subscription {
	e.mu.Lock()
	prev := e.openThread
	e.openThread = counterpartID
	e.mu.Unlock()

	if prev != 0 && prev != counterpartID {
		e.cancelKey(ThreadKey(prev))
		e.chats.Close(prev)
	}

	e.chats.Open(counterpartID)

	return e.acquire(ThreadKey(counterpartID), kindThread, counterpartID, e.threadInterval)
}

// CloseConversation stops polling a thread.
func (e *Engine) CloseConversation(counterpartID int64) {
	e.mu.Lock()
	if e.openThread == counterpartID {
		e.openThread = 0
	}
	e.mu.Unlock()

	e.cancelKey(ThreadKey(counterpartID))
	e.chats.Close(counterpartID)
}

// Cancel invalidates a subscription. Responses still in flight for it are discarded.
func (e *Engine) Cancel(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.slotLocked(sub); ok {
		e.deactivateLocked(s)
	}
}

// Status returns a snapshot of every target in table order.
func (e *Engine) Status() []TargetStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]TargetStatus, len(e.slots))
	for i := range e.slots {
		out[i] = e.slots[i].status()
	}

	return out
}

// Stop cancels every target and waits for the timer goroutines to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()

		return
	}
	e.stopped = true
	for i := range e.slots {
		e.deactivateLocked(&e.slots[i])
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	slog.Info("Sync engine stopped")
}

// Poll runs one sync cycle for the target: Idle -> Polling -> Applying|Backoff -> Idle.
// Rate limiting is absorbed into the backoff state and never returned.
// A call inside the backoff window is suppressed without reaching the remote.
func (e *Engine) Poll(ctx context.Context, sub Subscription) error {
	e.mu.Lock()
	s, ok := e.slotLocked(sub)
	if !ok {
		e.mu.Unlock()

		return ErrStaleSubscription
	}

	now := e.now()
	if s.state == StatePolling || s.state == StateApplying {
		e.mu.Unlock()
		slog.Debug("Sync already in flight, skipping", "target", s.key)

		return nil
	}
	if s.state == StateBackoff && now.Before(s.backoffUntil) {
		s.suppressed++
		key, until := s.key, s.backoffUntil
		e.mu.Unlock()
		slog.Debug("Sync suppressed by backoff", "target", key, "backoff_until", until)

		return nil
	}

	s.state = StatePolling
	key, k, counterpartID := s.key, s.kind, s.counterpartID
	e.mu.Unlock()

	ctx, span := otel.Tracer("service").Start(ctx, "SyncEngine.Poll")
	defer span.End()
	span.SetAttributes(attribute.String("target", key))

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	apply, err := e.fetch(callCtx, k, counterpartID)
	cancel()

	e.mu.Lock()
	s, ok = e.slotLocked(sub)
	if !ok {
		e.mu.Unlock()
		slog.Debug("Discarding response for cancelled target", "target", key)

		return nil
	}

	if err != nil {
		span.RecordError(err)

		return e.failLocked(ctx, s, err)
	}

	// Applying happens under the engine lock so a concurrent Cancel cannot interleave with it.
	// Anything that leaves the process runs in the follow-up, after the lock is released.
	s.state = StateApplying
	followUp := apply(ctx)

	s.state = StateIdle
	s.lastErr = nil
	s.lastSuccess = e.now()
	s.consecutiveRateLimits = 0
	s.warning = false
	s.backoffUntil = time.Time{}
	e.mu.Unlock()

	if followUp != nil {
		writeCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		followUp(writeCtx)
		cancel()
	}

	return nil
}

// failLocked records a failed cycle and unlocks the engine.
func (e *Engine) failLocked(ctx context.Context, s *slot, err error) error {
	key := s.key
	s.lastErr = err

	if !errors.Is(err, errs.ErrRateLimited) {
		s.state = StateIdle
		e.mu.Unlock()

		// Reads are not retried; the next cycle runs at the normal cadence.
		slog.Warn("Sync failed", "target", key, "error", err)

		return err
	}

	s.consecutiveRateLimits++
	s.backoffUntil = e.backoff.Next(e.now(), s.consecutiveRateLimits)
	s.state = StateBackoff
	count, until := s.consecutiveRateLimits, s.backoffUntil
	raise := count >= e.warningThreshold && !s.warning
	if raise {
		s.warning = true
	}
	e.mu.Unlock()

	slog.Info("Sync rate limited, backing off",
		"target", key,
		"consecutive", count,
		"backoff_until", until,
	)

	if raise {
		slog.Warn("Sync target repeatedly rate limited", "target", key, "consecutive", count)
		e.warn(ctx, key, count)
	}

	return nil
}

func (e *Engine) warn(ctx context.Context, key string, count int) {
	if e.notifier == nil {
		return
	}

	ev := event.New(event.TypeSyncWarning, event.SyncWarning{
		Target:              key,
		ConsecutiveFailures: count,
		Reason:              errs.ErrRateLimited.Error(),
	})
	if err := e.notifier.Notify(ctx, ev); err != nil {
		slog.Error("Failed to notify sync warning", "target", key, "error", err)
	}
}

// applyFunc mutates the in-memory stores and may return a follow-up that persists the result.
type applyFunc func(ctx context.Context) (followUp func(context.Context))

// fetch calls the remote for one target and returns how to apply the result.
func (e *Engine) fetch(ctx context.Context, k kind, counterpartID int64) (applyFunc, error) {
	switch k {
	case kindOrders:
		orders, err := e.remote.FetchOrdersForSeller(ctx, e.accountID())
		if err != nil {
			return nil, errs.Classify(err)
		}

		return func(ctx context.Context) func(context.Context) {
			e.orders.ApplySnapshot(ctx, orders)

			return nil
		}, nil
	case kindConversations:
		summaries, err := e.remote.FetchConversations(ctx, e.accountID())
		if err != nil {
			return nil, errs.Classify(err)
		}

		return func(ctx context.Context) func(context.Context) {
			e.chats.ApplySummaries(ctx, summaries)

			return nil
		}, nil
	case kindThread:
		thread, err := e.remote.FetchThread(ctx, counterpartID)
		if err != nil {
			return nil, errs.Classify(err)
		}

		return func(ctx context.Context) func(context.Context) {
			if thread.Counterpart.ID == counterpartID {
				e.chats.SetCounterpart(thread.Counterpart)
			}
			lastSeen, advanced := e.chats.ApplyIncoming(ctx, counterpartID, thread.Messages)
			if !advanced {
				return nil
			}

			return func(ctx context.Context) {
				e.chats.PersistCursor(ctx, counterpartID, lastSeen)
			}
		}, nil
	default:
		return nil, fmt.Errorf("unknown sync target kind %d", k)
	}
}

// acquire returns the live subscription for key, activating the slot if needed.
// A positive interval starts a timer goroutine that polls immediately and then on that cadence.
func (e *Engine) acquire(key string, k kind, counterpartID int64, interval time.Duration) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[key]
	if !ok {
		e.slots = append(e.slots, slot{key: key, kind: k, counterpartID: counterpartID})
		i = len(e.slots) - 1
		e.index[key] = i
	}

	s := &e.slots[i]
	if !s.active {
		s.generation++
		s.active = true
	}
	sub := Subscription{index: i, generation: s.generation}

	if interval > 0 && s.stop == nil && !e.stopped {
		s.stop = make(chan struct{})
		e.wg.Add(1)
		go e.run(sub, interval, s.stop)
	}

	return sub
}

func (e *Engine) cancelKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i, ok := e.index[key]; ok {
		e.deactivateLocked(&e.slots[i])
	}
}

// deactivateLocked bumps the generation so outstanding subscriptions and responses go stale.
func (e *Engine) deactivateLocked(s *slot) {
	if !s.active {
		return
	}

	s.active = false
	s.generation++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	if s.backoffUntil.After(e.now()) {
		s.state = StateBackoff
	} else {
		s.state = StateIdle
	}
}

func (e *Engine) slotLocked(sub Subscription) (*slot, bool) {
	if sub.index < 0 || sub.index >= len(e.slots) {
		return nil, false
	}

	s := &e.slots[sub.index]
	if !s.active || s.generation != sub.generation {
		return nil, false
	}

	return s, true
}

// run polls one target until its subscription goes stale or the engine stops.
func (e *Engine) run(sub Subscription, interval time.Duration, stop <-chan struct{}) {
	defer e.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-e.baseCtx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
			if err := e.Poll(e.baseCtx, sub); errors.Is(err, ErrStaleSubscription) {
				return
			}
			timer.Reset(e.nextDelay(sub, interval))
		}
	}
}

// nextDelay waits out an active backoff window instead of polling into it.
func (e *Engine) nextDelay(sub Subscription, interval time.Duration) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.slotLocked(sub)
	if !ok || s.state != StateBackoff {
		return interval
	}

	if remaining := s.backoffUntil.Sub(e.now()); remaining > interval {
		return remaining
	}

	return interval
}

func (e *Engine) accountID() int64 {
	if e.session == nil {
		return 0
	}

	return e.session.AccountID
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}

	return fallback
}
