package remote

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/price"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
)

// timestampLayouts covers RFC 3339 and naive ISO timestamps, which are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp decodes the timestamp shapes the API emits. Unknown shapes become the zero time.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		t.Time = time.Time{}

		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed

			return nil
		}
	}

	slog.Warn("Unparsable timestamp from remote", "raw", s)
	t.Time = time.Time{}

	return nil
}

// flexID decodes an id sent as a number, a numeric string or null.
type flexID int64

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0

		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		slog.Warn("Unparsable id from remote", "raw", string(data))
		*id = 0

		return nil
	}
	*id = flexID(v)

	return nil
}

type errorResponse struct {
	Message string `json:"message"`
}

type ordersResponse struct {
	Orders []orderDTO `json:"orders"`
}

// orderDTO covers both order shapes: the seller view groups items under order_id,
// the buyer and admin views return order rows with nested items.
type orderDTO struct {
	ID              flexID       `json:"id"`
	OrderID         flexID       `json:"order_id"`
	OrderNumber     string       `json:"order_number"`
	BuyerID         flexID       `json:"buyer_id"`
	BuyerName       string       `json:"buyer_name"`
	DeliveryAddress string       `json:"delivery_address"`
	ContactNumber   string       `json:"contact_number"`
	OrderDate       timestamp    `json:"order_date"`
	CreatedAt       timestamp    `json:"created_at"`
	TotalAmount     price.Amount `json:"total_amount"`
	PaymentMethod   string       `json:"payment_method"`
	PaymentRef      string       `json:"payment_reference"`
	Items           []itemDTO    `json:"items"`
}

type itemDTO struct {
	ID           flexID       `json:"id"`
	OrderID      flexID       `json:"order_id"`
	ProductID    flexID       `json:"product_id"`
	ProductName  string       `json:"product_name"`
	ImageURL     string       `json:"image_url"`
	FarmerID     flexID       `json:"farmer_id"`
	FarmerName   string       `json:"farmer_name"`
	Quantity     flexID       `json:"quantity"`
	PricePerUnit price.Amount `json:"price_per_unit"`
	TotalPrice   price.Amount `json:"total_price"`
	Status       string       `json:"status"`
	CreatedAt    timestamp    `json:"created_at"`
}

// toModel normalizes an order. sellerID fills in the owner when the payload omits it.
func (d orderDTO) toModel(sellerID int64) order.Order {
	id := int64(d.ID)
	if d.OrderID != 0 {
		id = int64(d.OrderID)
	}

	orderedAt := d.OrderDate.Time
	if orderedAt.IsZero() {
		orderedAt = d.CreatedAt.Time
	}

	o := order.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		BuyerID:         int64(d.BuyerID),
		BuyerName:       d.BuyerName,
		DeliveryAddress: d.DeliveryAddress,
		ContactNumber:   d.ContactNumber,
		OrderedAt:       orderedAt,
		Items:           make([]orderitem.OrderItem, 0, len(d.Items)),
		RemoteTotal:     d.TotalAmount,
	}
	if d.PaymentMethod != "" || d.PaymentRef != "" {
		o.Payment = &order.Payment{Method: d.PaymentMethod, Reference: d.PaymentRef}
	}

	for _, it := range d.Items {
		o.Items = append(o.Items, it.toModel(id, sellerID))
	}

	return o
}

func (d itemDTO) toModel(orderID, sellerID int64) orderitem.OrderItem {
	owner := int64(d.FarmerID)
	if owner == 0 {
		owner = sellerID
	}

	status, err := orderitem.ParseStatus(d.Status)
	if err != nil {
		slog.Warn("Unknown item status from remote, treating as pending",
			"item_id", int64(d.ID),
			"status", d.Status,
		)
		status = orderitem.StatusPending
	}

	if d.OrderID != 0 {
		orderID = int64(d.OrderID)
	}

	return orderitem.OrderItem{
		ID:              int64(d.ID),
		OrderID:         orderID,
		ProductID:       int64(d.ProductID),
		ProductName:     d.ProductName,
		ImageURL:        d.ImageURL,
		SellerID:        owner,
		SellerName:      d.FarmerName,
		Quantity:        int(d.Quantity),
		UnitPrice:       d.PricePerUnit,
		Status:          status,
		CreatedAt:       d.CreatedAt.Time,
		RemoteLineTotal: d.TotalPrice,
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type userDTO struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (u userDTO) toModel() conversation.Counterpart {
	r, err := role.Parse(u.Role)
	if err != nil && u.Role != "" {
		slog.Warn("Unknown counterpart role from remote", "user_id", int64(u.ID), "role", u.Role)
	}

	name := strings.TrimSpace(u.FullName)
	if name == "" {
		name = u.Username
	}

	return conversation.Counterpart{
		ID:       int64(u.ID),
		Name:     name,
		Username: u.Username,
		Role:     r,
	}
}

type conversationsResponse struct {
	Conversations []summaryDTO `json:"conversations"`
}

type summaryDTO struct {
	User          userDTO     `json:"user"`
	LatestMessage *previewDTO `json:"latest_message"`
	UnreadCount   flexID      `json:"unread_count"`
}

type previewDTO struct {
	Message   string    `json:"message"`
	SenderID  flexID    `json:"sender_id"`
	CreatedAt timestamp `json:"created_at"`
}

func (d summaryDTO) toModel() conversation.Summary {
	s := conversation.Summary{
		Counterpart: d.User.toModel(),
		UnreadCount: int(d.UnreadCount),
	}
	if d.LatestMessage != nil {
		s.Latest = &conversation.Preview{
			Body:      d.LatestMessage.Message,
			SenderID:  int64(d.LatestMessage.SenderID),
			CreatedAt: d.LatestMessage.CreatedAt.Time,
		}
	}

	return s
}

type threadResponse struct {
	OtherUser userDTO      `json:"other_user"`
	Messages  []messageDTO `json:"messages"`
}

type messageDTO struct {
	ID         flexID    `json:"id"`
	SenderID   flexID    `json:"sender_id"`
	ReceiverID flexID    `json:"receiver_id"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  timestamp `json:"created_at"`
}

func (d messageDTO) toModel() conversation.Message {
	return conversation.Message{
		ID:         int64(d.ID),
		SenderID:   int64(d.SenderID),
		ReceiverID: int64(d.ReceiverID),
		Body:       d.Message,
		CreatedAt:  d.CreatedAt.Time,
		Read:       d.IsRead,
	}
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	Message    string `json:"message"`
}

type sendMessageResponse struct {
	Chat messageDTO `json:"chat"`
}
