package auditlog

import "time"

// ItemStatusChange records one item status transition confirmed by the remote API.
type ItemStatusChange struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"orderId"`
	OrderItemID int64     `json:"orderItemId"`
	SellerID    int64     `json:"sellerId"`
	FromStatus  string    `json:"fromStatus"`
	ToStatus    string    `json:"toStatus"`
	CreatedAt   time.Time `json:"createdAt"`
}
