package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/iauditrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/interfaces/iremote"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/postgres"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/dal/uow"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/auditlog"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/outbox"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
)

// OrderService is the local order cache for one session.
// It is written only by the sync engine (snapshots) and by confirmed status changes.
type OrderService struct {
	remote   iremote.IRemote
	session  *session.Session
	notifier notifier
	newUOW   func() unitOfWork
	route    outbox.Route
	// recordTimeout bounds the audit transaction, which outlives the caller's context.
	recordTimeout time.Duration

	mu       sync.RWMutex
	orders   []order.Order
	items    map[int64]itemRef
	updating map[int64]orderitem.Status
	syncedAt time.Time
}

type itemRef struct {
	order int
	item  int
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	AuditRepository() iauditrepo.IAuditRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// notifier delivers change events to in-process subscribers.
type notifier interface {
	Broadcast(ev event.Event)
}

// ItemView is an order item as presented to a reader.
type ItemView struct {
	orderitem.OrderItem
	LineTotal decimal.Decimal `json:"lineTotal"`
	// Updating is true while a status change for this item awaits the remote answer.
	Updating           bool               `json:"updating"`
	AllowedTransitions []orderitem.Status `json:"allowedTransitions"`
}

// View is an order projected for the session, with derived figures.
type View struct {
	ID              int64                    `json:"id"`
	OrderNumber     string                   `json:"orderNumber"`
	BuyerID         int64                    `json:"buyerId"`
	BuyerName       string                   `json:"buyerName"`
	DeliveryAddress string                   `json:"deliveryAddress"`
	ContactNumber   string                   `json:"contactNumber"`
	OrderedAt       time.Time                `json:"orderedAt"`
	Payment         *order.Payment           `json:"payment,omitempty"`
	Items           []ItemView               `json:"items"`
	Total           decimal.Decimal          `json:"total"`
	StatusSummary   map[orderitem.Status]int `json:"statusSummary"`
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		items:         make(map[int64]itemRef),
		updating:      make(map[int64]orderitem.Status),
		recordTimeout: viper.GetDuration("postgres.write_timeout"),
	}
	if s.recordTimeout <= 0 {
		s.recordTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.remote == nil {
		panic("ordersvc: remote client is required")
	}

	return s
}

// WithRemote sets the remote API client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRemote(remote iremote.IRemote) option {
	return func(s *OrderService) {
		s.remote = remote
	}
}

// WithSession sets the session whose view of the orders is served.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSession(sess *session.Session) option {
	return func(s *OrderService) {
		s.session = sess
	}
}

// WithNotifier sets the in-process change notifier.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotifier(n notifier) option {
	return func(s *OrderService) {
		s.notifier = n
	}
}

// WithPostgresClient enables the audit log and the transactional outbox for confirmed transitions.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client, route outbox.Route) option {
	return func(s *OrderService) {
		s.route = route
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// ApplySnapshot replaces the cached orders with a full remote snapshot.
// The replacement is atomic for readers; the latest applied snapshot wins.
func (s *OrderService) ApplySnapshot(ctx context.Context, orders []order.Order) {
	_, span := otel.Tracer("service").Start(ctx, "OrderService.ApplySnapshot")
	defer span.End()

	next := make([]order.Order, 0, len(orders))
	index := make(map[int64]itemRef)
	for _, o := range orders {
		o = o.Clone()
		checkOrderIntegrity(o)

		items := o.Items[:0]
		for _, item := range o.Items {
			if _, dup := index[item.ID]; dup {
				slog.Warn("Duplicate order item id in snapshot, keeping first occurrence",
					"order_id", o.ID,
					"item_id", item.ID,
				)

				continue
			}
			index[item.ID] = itemRef{order: len(next), item: len(items)}
			items = append(items, item)
		}
		o.Items = items
		next = append(next, o)
	}

	s.mu.Lock()
	s.orders = next
	s.items = index
	s.syncedAt = time.Now()
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("orders", len(next)))
	slog.Debug("Order snapshot applied", "orders_count", len(next))

	s.broadcast(event.New(event.TypeOrdersRefreshed, event.OrdersRefreshed{Orders: len(next)}))
}

// Orders returns the session's view of the cached orders, filtered and sorted by query.
func (s *OrderService) Orders(query order.QueryOrdersModel) []View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]View, 0, len(s.orders))
	for _, o := range s.orders {
		if !Visible(o, s.session) {
			continue
		}
		view := s.viewLocked(o)
		if query.Status != nil && !hasItemStatus(view.Items, *query.Status) {
			continue
		}
		views = append(views, view)
	}

	SortViews(views, query.SortBy)

	return views
}

// Order returns one order as seen by the session.
func (s *OrderService) Order(id int64) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == id && Visible(o, s.session) {
			return s.viewLocked(o), nil
		}
	}

	return View{}, fmt.Errorf("order %d: %w", id, errs.ErrNotFound)
}

// Item returns a copy of a cached item.
func (s *OrderService) Item(itemID int64) (orderitem.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.itemLocked(itemID)
	if !ok {
		return orderitem.OrderItem{}, fmt.Errorf("order item %d: %w", itemID, errs.ErrNotFound)
	}

	return *item, nil
}

// ItemHistory returns the recorded status transitions of a cached item, oldest first.
func (s *OrderService) ItemHistory(ctx context.Context, itemID int64) ([]auditlog.ItemStatusChange, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ItemHistory")
	defer span.End()

	if _, err := s.Item(itemID); err != nil {
		return nil, err
	}

	if s.newUOW == nil {
		return []auditlog.ItemStatusChange{}, nil
	}

	history, err := s.newUOW().AuditRepository().ListByItem(ctx, itemID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to list item %d history: %w", itemID, err)
	}

	return history, nil
}

// IsUpdating reports whether a status change for the item is in flight.
func (s *OrderService) IsUpdating(itemID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.updating[itemID]

	return ok
}

// SyncedAt returns when the last snapshot was applied.
func (s *OrderService) SyncedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.syncedAt
}

// RequestStatusChange asks the remote API to move an item to target on behalf of actorID.
// Local state changes only after the remote confirms; until then the item is reported as updating.
func (s *OrderService) RequestStatusChange(
	ctx context.Context,
	itemID int64,
	target orderitem.Status,
	actorID int64,
) (orderitem.OrderItem, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.RequestStatusChange")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("item_id", itemID),
		attribute.String("target_status", target.String()),
	)

	from, err := s.beginStatusChange(itemID, target, actorID)
	if err != nil {
		span.RecordError(err)

		return orderitem.OrderItem{}, err
	}

	slog.Info("Requesting item status change",
		"item_id", itemID,
		"from_status", from,
		"to_status", target,
		"actor_id", actorID,
	)

	remoteErr := s.remote.UpdateItemStatus(ctx, itemID, target)

	s.mu.Lock()
	delete(s.updating, itemID)
	if remoteErr != nil {
		s.mu.Unlock()
		err := errs.Classify(remoteErr)
		span.RecordError(err)
		slog.Warn("Item status change failed",
			"item_id", itemID,
			"to_status", target,
			"retryable", errs.IsRetryable(err),
			"error", err,
		)

		return orderitem.OrderItem{}, fmt.Errorf("failed to update item %d status: %w", itemID, err)
	}

	item, ok := s.itemLocked(itemID)
	if !ok {
		// The item disappeared from the cache while the write was in flight; the next snapshot will carry it.
		s.mu.Unlock()
		slog.Warn("Confirmed status change for item missing from cache", "item_id", itemID)

		return orderitem.OrderItem{ID: itemID, Status: target, SellerID: actorID}, nil
	}
	item.Status = target
	updated := *item
	s.mu.Unlock()

	change := auditlog.ItemStatusChange{
		OrderID:     updated.OrderID,
		OrderItemID: updated.ID,
		SellerID:    actorID,
		FromStatus:  from.String(),
		ToStatus:    target.String(),
		CreatedAt:   time.Now(),
	}
	ev := event.New(event.TypeItemStatusChanged, event.ItemStatusChanged{
		OrderID:    change.OrderID,
		ItemID:     change.OrderItemID,
		SellerID:   change.SellerID,
		FromStatus: change.FromStatus,
		ToStatus:   change.ToStatus,
	})
	s.recordTransition(ctx, change, ev)
	s.broadcast(ev)

	slog.Info("Item status changed", "item_id", itemID, "order_id", updated.OrderID, "status", target)

	return updated, nil
}

// beginStatusChange validates a request and marks the item as updating.
func (s *OrderService) beginStatusChange(
	itemID int64,
	target orderitem.Status,
	actorID int64,
) (orderitem.Status, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", errs.ErrInvalidTransition, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.itemLocked(itemID)
	if !ok {
		return "", fmt.Errorf("order item %d: %w", itemID, errs.ErrNotFound)
	}

	if item.SellerID != actorID {
		return "", fmt.Errorf("actor %d does not own item %d: %w", actorID, itemID, errs.ErrUnauthorized)
	}

	if _, busy := s.updating[itemID]; busy {
		return "", fmt.Errorf("item %d: %w", itemID, errs.ErrUpdateInProgress)
	}

	if !orderitem.CanTransition(item.Status, target) {
		return "", fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, item.Status, target)
	}

	s.updating[itemID] = target

	return item.Status, nil
}

// recordTransition writes the audit row and the outbox event in one transaction.
// Failures are logged only: the remote write has already succeeded.
// The transaction is detached from ctx cancellation so a caller that goes away
// after the remote confirmed the change still leaves a record of it.
func (s *OrderService) recordTransition(ctx context.Context, change auditlog.ItemStatusChange, ev event.Event) {
	if s.newUOW == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()

	msg, err := outbox.FromEvent(ev, s.route)
	if err != nil {
		slog.Error("Failed to build outbox message", "item_id", change.OrderItemID, "error", err)

		return
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		slog.Error("Failed to begin audit transaction", "item_id", change.OrderItemID, "error", err)

		return
	}

	err = work.AuditRepository().SaveStatusChanges(ctx, []auditlog.ItemStatusChange{change})
	if err == nil {
		err = work.OutboxRepository().Insert(ctx, msg)
	}
	if err != nil {
		slog.Error("Failed to record item status change", "item_id", change.OrderItemID, "error", err)
		if rbErr := work.Rollback(ctx); rbErr != nil {
			slog.Error("Failed to roll back audit transaction", "error", rbErr)
		}

		return
	}

	if err := work.Commit(ctx); err != nil {
		slog.Error("Failed to commit audit transaction", "item_id", change.OrderItemID, "error", err)
	}
}

func (s *OrderService) broadcast(ev event.Event) {
	if s.notifier != nil {
		s.notifier.Broadcast(ev)
	}
}

func (s *OrderService) itemLocked(itemID int64) (*orderitem.OrderItem, bool) {
	ref, ok := s.items[itemID]
	if !ok {
		return nil, false
	}

	return &s.orders[ref.order].Items[ref.item], true
}

func (s *OrderService) viewLocked(o order.Order) View {
	items := Project(o, s.session)
	views := make([]ItemView, len(items))
	for i, item := range items {
		_, busy := s.updating[item.ID]
		views[i] = ItemView{
			OrderItem:          item,
			LineTotal:          item.LineTotal(),
			Updating:           busy,
			AllowedTransitions: orderitem.Transitions(item.Status),
		}
	}

	var payment *order.Payment
	if o.Payment != nil {
		p := *o.Payment
		payment = &p
	}

	return View{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		BuyerName:       o.BuyerName,
		DeliveryAddress: o.DeliveryAddress,
		ContactNumber:   o.ContactNumber,
		OrderedAt:       o.OrderedAt,
		Payment:         payment,
		Items:           views,
		Total:           TotalFor(items),
		StatusSummary:   StatusSummary(items),
	}
}

func hasItemStatus(items []ItemView, status orderitem.Status) bool {
	for _, item := range items {
		if item.Status == status {
			return true
		}
	}

	return false
}

// checkOrderIntegrity logs shape anomalies; the order is still displayed best effort.
func checkOrderIntegrity(o order.Order) {
	for _, item := range o.Items {
		if !item.UnitPrice.Valid {
			slog.Warn("Unparsable unit price normalized to zero",
				"order_id", o.ID,
				"item_id", item.ID,
				"raw", item.UnitPrice.Raw,
			)
		}
		if item.Quantity <= 0 {
			slog.Warn("Non-positive item quantity", "order_id", o.ID, "item_id", item.ID, "quantity", item.Quantity)
		}
		if item.RemoteLineTotal.Valid && !item.RemoteLineTotal.Decimal.Equal(item.LineTotal()) {
			slog.Warn("Remote line total differs from quantity x unit price",
				"order_id", o.ID,
				"item_id", item.ID,
				"remote_total", item.RemoteLineTotal.String(),
				"computed_total", item.LineTotal().StringFixed(2),
			)
		}
	}

	if o.RemoteTotal.Valid {
		computed := TotalFor(o.Items)
		if !o.RemoteTotal.Decimal.Equal(computed) {
			slog.Warn("Remote order total differs from item sum",
				"order_id", o.ID,
				"remote_total", o.RemoteTotal.String(),
				"computed_total", computed.StringFixed(2),
			)
		}
	}
}
