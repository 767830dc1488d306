package chatsvc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/icursorrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/iremote"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
)

// ChatService keeps one thread per counterpart with unread bookkeeping.
// It is written by the sync engine (fetched threads and summaries) and by confirmed sends.
type ChatService struct {
	remote     iremote.IRemote
	session    *session.Session
	cursorRepo icursorrepo.ICursorRepository
	notifier   notifier
	maxLength  int

	mu            sync.RWMutex
	conversations map[int64]*conversation.Conversation
	open          map[int64]bool
	unreadTotal   int
}

// notifier delivers change events to in-process subscribers.
type notifier interface {
	Broadcast(ev event.Event)
}

// option is a function that configures the ChatService.
type option func(*ChatService)

// MustNewChatService creates a new ChatService.
func MustNewChatService(opts ...option) *ChatService {
	maxLength := viper.GetInt("chat.max_message_length")
	if maxLength == 0 {
		maxLength = 2000
	}

	s := &ChatService{
		maxLength:     maxLength,
		conversations: make(map[int64]*conversation.Conversation),
		open:          make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.remote == nil {
		panic("chatsvc: remote client is required")
	}

	return s
}

// WithRemote sets the remote API client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRemote(remote iremote.IRemote) option {
	return func(s *ChatService) {
		s.remote = remote
	}
}

// WithSession sets the session owning the conversations.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSession(sess *session.Session) option {
	return func(s *ChatService) {
		s.session = sess
	}
}

// WithCursorRepository persists high-water marks across sessions.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCursorRepository(repo icursorrepo.ICursorRepository) option {
	return func(s *ChatService) {
		s.cursorRepo = repo
	}
}

// WithNotifier sets the in-process change notifier.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotifier(n notifier) option {
	return func(s *ChatService) {
		s.notifier = n
	}
}

// Restore loads persisted high-water marks for the session account.
func (s *ChatService) Restore(ctx context.Context) error {
	if s.cursorRepo == nil || s.session == nil {
		return nil
	}

	cursors, err := s.cursorRepo.Load(ctx, s.session.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load conversation cursors: %w", err)
	}

	s.mu.Lock()
	for counterpartID, lastSeen := range cursors {
		conv := s.ensureLocked(counterpartID)
		if lastSeen > conv.LastSeenMessageID {
			conv.LastSeenMessageID = lastSeen
		}
	}
	s.mu.Unlock()

	slog.Info("Conversation cursors restored", "count", len(cursors))

	return nil
}

// ApplyIncoming merges a full thread fetched from the remote.
// Messages above the high-water mark that are not yet held are appended and,
// when authored by the counterpart, counted as unread. Applying the same batch twice is a no-op.
// It returns the high-water mark and whether it moved; persisting it is left to PersistCursor.
func (s *ChatService) ApplyIncoming(
	ctx context.Context,
	counterpartID int64,
	messages []conversation.Message,
) (lastSeen int64, advanced bool) {
	_, span := otel.Tracer("service").Start(ctx, "ChatService.ApplyIncoming")
	defer span.End()

	s.mu.Lock()

	conv := s.ensureLocked(counterpartID)
	known := make(map[int64]int, len(conv.Messages))
	for i, m := range conv.Messages {
		known[m.ID] = i
	}

	appended, backfilled, newUnread := 0, 0, 0
	maxID := conv.LastSeenMessageID
	for _, m := range messages {
		if i, ok := known[m.ID]; ok {
			mergeExisting(&conv.Messages[i], m, counterpartID)

			continue
		}

		known[m.ID] = len(conv.Messages)
		conv.Messages = append(conv.Messages, m)
		if m.ID > conv.LastSeenMessageID {
			appended++
			if m.SenderID == counterpartID {
				newUnread++
			}
		} else {
			// History below the high-water mark is shown but never counted as unread.
			backfilled++
		}
	}

	for _, m := range messages {
		if m.ID > maxID {
			maxID = m.ID
		}
	}

	sortMessages(conv)

	if s.open[counterpartID] {
		conv.UnreadCount = 0
	} else {
		conv.UnreadCount += newUnread
	}

	advanced = maxID > conv.LastSeenMessageID
	if advanced {
		conv.LastSeenMessageID = maxID
	}
	if n := len(conv.Messages); n > 0 {
		last := conv.Messages[n-1]
		conv.Latest = &conversation.Preview{Body: last.Body, SenderID: last.SenderID, CreatedAt: last.CreatedAt}
	}

	payload := event.ConversationUpdated{
		CounterpartID:     counterpartID,
		Appended:          appended,
		UnreadCount:       conv.UnreadCount,
		LastSeenMessageID: conv.LastSeenMessageID,
	}
	unreadChanged := s.recountLocked()
	total := s.unreadTotal
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("counterpart_id", counterpartID),
		attribute.Int("appended", appended),
	)

	if backfilled > 0 {
		slog.Debug("Thread history backfilled", "counterpart_id", counterpartID, "count", backfilled)
	}

	if appended > 0 || backfilled > 0 {
		s.broadcast(event.New(event.TypeConversationUpdated, payload))
	}
	if unreadChanged {
		s.broadcast(event.New(event.TypeUnreadChanged, event.UnreadChanged{Total: total}))
	}

	return payload.LastSeenMessageID, advanced
}

// MarkAsSent appends a message the session authored once the remote has confirmed it.
// Neither the unread count nor the high-water mark changes; a later poll dedupes the message by id.
func (s *ChatService) MarkAsSent(counterpartID int64, msg conversation.Message) {
	s.mu.Lock()

	conv := s.ensureLocked(counterpartID)
	for _, m := range conv.Messages {
		if m.ID == msg.ID {
			s.mu.Unlock()

			return
		}
	}

	conv.Messages = append(conv.Messages, msg)
	sortMessages(conv)
	last := conv.Messages[len(conv.Messages)-1]
	conv.Latest = &conversation.Preview{Body: last.Body, SenderID: last.SenderID, CreatedAt: last.CreatedAt}

	payload := event.ConversationUpdated{
		CounterpartID:     counterpartID,
		Appended:          1,
		UnreadCount:       conv.UnreadCount,
		LastSeenMessageID: conv.LastSeenMessageID,
	}
	s.mu.Unlock()

	s.broadcast(event.New(event.TypeConversationUpdated, payload))
}

// Send validates and sends a message, then appends the confirmed copy.
// A failed send leaves the thread untouched and is never retried automatically.
func (s *ChatService) Send(ctx context.Context, receiverID int64, body string) (conversation.Message, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "ChatService.Send")
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return conversation.Message{}, fmt.Errorf("%w: empty body", errs.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(body) > s.maxLength {
		return conversation.Message{}, fmt.Errorf("%w: body longer than %d characters", errs.ErrInvalidMessage, s.maxLength)
	}
	if receiverID <= 0 {
		return conversation.Message{}, fmt.Errorf("%w: invalid receiver %d", errs.ErrInvalidMessage, receiverID)
	}
	if s.session != nil && receiverID == s.session.AccountID {
		return conversation.Message{}, fmt.Errorf("%w: cannot message yourself", errs.ErrInvalidMessage)
	}

	msg, err := s.remote.SendMessage(ctx, receiverID, body)
	if err != nil {
		err = errs.Classify(err)
		span.RecordError(err)
		slog.Warn("Failed to send message",
			"receiver_id", receiverID,
			"retryable", errs.IsRetryable(err),
			"error", err,
		)

		return conversation.Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	s.MarkAsSent(receiverID, msg)

	return msg, nil
}

// ApplySummaries merges the remote conversation list.
// The server unread count is adopted only for conversations that are not open.
func (s *ChatService) ApplySummaries(ctx context.Context, summaries []conversation.Summary) {
	_, span := otel.Tracer("service").Start(ctx, "ChatService.ApplySummaries")
	defer span.End()

	s.mu.Lock()
	for _, summary := range summaries {
		if summary.Counterpart.ID == 0 {
			slog.Warn("Conversation summary without counterpart id, skipping")

			continue
		}

		conv := s.ensureLocked(summary.Counterpart.ID)
		conv.Counterpart = summary.Counterpart
		if summary.Latest != nil {
			p := *summary.Latest
			conv.Latest = &p
		}

		if s.open[summary.Counterpart.ID] {
			continue
		}
		if summary.UnreadCount < 0 {
			slog.Warn("Negative unread count normalized to zero",
				"counterpart_id", summary.Counterpart.ID,
				"unread_count", summary.UnreadCount,
			)
			summary.UnreadCount = 0
		}
		conv.UnreadCount = summary.UnreadCount
	}
	unreadChanged := s.recountLocked()
	total := s.unreadTotal
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("conversations", len(summaries)))

	if unreadChanged {
		s.broadcast(event.New(event.TypeUnreadChanged, event.UnreadChanged{Total: total}))
	}
}

// SetCounterpart updates counterpart metadata from a fetched thread.
func (s *ChatService) SetCounterpart(c conversation.Counterpart) {
	if c.ID == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.ensureLocked(c.ID)
	if c.Name == "" {
		c.Name = conv.Counterpart.Name
	}
	if c.Username == "" {
		c.Username = conv.Counterpart.Username
	}
	if c.Role == "" {
		c.Role = conv.Counterpart.Role
	}
	conv.Counterpart = c
}

// Open marks a conversation as viewed; its unread count resets.
func (s *ChatService) Open(counterpartID int64) {
	s.mu.Lock()
	s.open[counterpartID] = true
	conv := s.ensureLocked(counterpartID)
	conv.UnreadCount = 0
	unreadChanged := s.recountLocked()
	total := s.unreadTotal
	s.mu.Unlock()

	if unreadChanged {
		s.broadcast(event.New(event.TypeUnreadChanged, event.UnreadChanged{Total: total}))
	}
}

// Close marks a conversation as no longer viewed.
func (s *ChatService) Close(counterpartID int64) {
	s.mu.Lock()
	delete(s.open, counterpartID)
	s.mu.Unlock()
}

// IsOpen reports whether the conversation is being viewed.
func (s *ChatService) IsOpen(counterpartID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.open[counterpartID]
}

// UnreadTotal returns the sum of unread counts across conversations.
func (s *ChatService) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.unreadTotal
}

// Conversation returns a copy of one conversation.
func (s *ChatService) Conversation(counterpartID int64) (conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[counterpartID]
	if !ok {
		return conversation.Conversation{}, fmt.Errorf("conversation %d: %w", counterpartID, errs.ErrNotFound)
	}

	return conv.Clone(), nil
}

// Conversations returns summaries of all known conversations, most recent first.
func (s *ChatService) Conversations() []conversation.Summary {
	s.mu.RLock()
	summaries := make([]conversation.Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		summary := conversation.Summary{
			Counterpart: conv.Counterpart,
			UnreadCount: conv.UnreadCount,
		}
		if conv.Latest != nil {
			p := *conv.Latest
			summary.Latest = &p
		}
		summaries = append(summaries, summary)
	}
	s.mu.RUnlock()

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].Latest, summaries[j].Latest
		switch {
		case a == nil && b == nil:
			return summaries[i].Counterpart.ID < summaries[j].Counterpart.ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.CreatedAt.Equal(b.CreatedAt):
			return summaries[i].Counterpart.ID < summaries[j].Counterpart.ID
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	return summaries
}

func (s *ChatService) ensureLocked(counterpartID int64) *conversation.Conversation {
	conv, ok := s.conversations[counterpartID]
	if !ok {
		conv = &conversation.Conversation{
			Counterpart: conversation.Counterpart{ID: counterpartID},
			Messages:    make([]conversation.Message, 0),
		}
		s.conversations[counterpartID] = conv
	}

	return conv
}

// recountLocked recomputes the global unread total from scratch and reports whether it changed.
func (s *ChatService) recountLocked() bool {
	total := 0
	for _, conv := range s.conversations {
		total += conv.UnreadCount
	}

	changed := total != s.unreadTotal
	s.unreadTotal = total

	return changed
}

// PersistCursor stores the high-water mark for a conversation so a restart does not recount it as unread.
// Failures are logged; the in-memory mark stays authoritative for this process.
func (s *ChatService) PersistCursor(ctx context.Context, counterpartID, lastSeen int64) {
	if s.cursorRepo == nil || s.session == nil {
		return
	}

	if err := s.cursorRepo.Advance(ctx, s.session.AccountID, counterpartID, lastSeen); err != nil {
		slog.Error("Failed to persist conversation cursor",
			"counterpart_id", counterpartID,
			"last_seen_message_id", lastSeen,
			"error", err,
		)
	}
}

func (s *ChatService) broadcast(ev event.Event) {
	if s.notifier != nil {
		s.notifier.Broadcast(ev)
	}
}

// mergeExisting applies the only permitted change to an observed message: its read flag.
func mergeExisting(held *conversation.Message, fetched conversation.Message, counterpartID int64) {
	if held.Body != fetched.Body || held.SenderID != fetched.SenderID {
		slog.Warn("Observed message changed on the remote, keeping the first copy",
			"counterpart_id", counterpartID,
			"message_id", held.ID,
		)
	}

	held.Read = fetched.Read
}

// sortMessages orders by ascending id and logs timestamps that disagree with id order.
func sortMessages(conv *conversation.Conversation) {
	sort.SliceStable(conv.Messages, func(i, j int) bool {
		return conv.Messages[i].ID < conv.Messages[j].ID
	})

	for i := 1; i < len(conv.Messages); i++ {
		prev, cur := conv.Messages[i-1], conv.Messages[i]
		if cur.CreatedAt.Before(prev.CreatedAt) {
			slog.Warn("Message timestamps are not monotonic with ids",
				"counterpart_id", conv.Counterpart.ID,
				"message_id", cur.ID,
				"previous_message_id", prev.ID,
			)
		}
	}
}
