package orderitem

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/price"
)

// OrderItem represents one product line within an order, fulfilled by a single seller.
type OrderItem struct {
	ID          int64        `json:"id"`
	OrderID     int64        `json:"orderId"`
	ProductID   int64        `json:"productId"`
	ProductName string       `json:"productName"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	SellerID    int64        `json:"sellerId"`
	SellerName  string       `json:"sellerName,omitempty"`
	Quantity    int          `json:"quantity"`
	UnitPrice   price.Amount `json:"unitPrice"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	// RemoteLineTotal is the total the remote supplied; it is only compared against LineTotal, never trusted.
	RemoteLineTotal price.Amount `json:"-"`
}

// LineTotal recomputes quantity × unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}
