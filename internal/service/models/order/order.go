package order

import (
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/price"
)

// Order represents a buyer order as mirrored from the remote API.
// It has no status of its own: status lives on each item.
type Order struct {
	ID              int64                 `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	BuyerID         int64                 `json:"buyerId"`
	BuyerName       string                `json:"buyerName"`
	DeliveryAddress string                `json:"deliveryAddress"`
	ContactNumber   string                `json:"contactNumber"`
	OrderedAt       time.Time             `json:"orderedAt"`
	Items           []orderitem.OrderItem `json:"items"`
	Payment         *Payment              `json:"payment,omitempty"`
	// RemoteTotal is the total the remote supplied, kept only to detect drift.
	RemoteTotal price.Amount `json:"-"`
}

// Payment is optional payment metadata attached to an order.
type Payment struct {
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Clone returns a deep copy that shares no slices with o.
func (o Order) Clone() Order {
	c := o
	c.Items = make([]orderitem.OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}

	return c
}
