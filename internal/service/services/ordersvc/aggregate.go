package ordersvc

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/session"
)

// ItemsOwnedBy returns the items of o owned by sellerID, in server order.
func ItemsOwnedBy(o order.Order, sellerID int64) []orderitem.OrderItem {
	items := make([]orderitem.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			items = append(items, item)
		}
	}

	return items
}

// TotalFor sums line totals recomputed from quantity and unit price.
// Any total supplied by the remote is ignored.
func TotalFor(items []orderitem.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}

	return total
}

// StatusSummary counts items per status. Every status present is reported; none takes priority.
func StatusSummary(items []orderitem.OrderItem) map[orderitem.Status]int {
	summary := make(map[orderitem.Status]int)
	for _, item := range items {
		summary[item.Status]++
	}

	return summary
}

// HasStatus reports whether at least one item is in status.
func HasStatus(items []orderitem.OrderItem, status orderitem.Status) bool {
	for _, item := range items {
		if item.Status == status {
			return true
		}
	}

	return false
}

// Project returns the items of o visible to the session.
// Farmers see only the items they own; admins and buyers see the whole order.
func Project(o order.Order, s *session.Session) []orderitem.OrderItem {
	if s != nil && s.Role == role.Farmer {
		return ItemsOwnedBy(o, s.AccountID)
	}

	items := make([]orderitem.OrderItem, len(o.Items))
	copy(items, o.Items)

	return items
}

// Visible reports whether the session may see o at all.
func Visible(o order.Order, s *session.Session) bool {
	if s == nil {
		return true
	}

	switch s.Role {
	case role.Farmer:
		return len(ItemsOwnedBy(o, s.AccountID)) > 0
	case role.Buyer:
		return o.BuyerID == 0 || o.BuyerID == s.AccountID
	default:
		return true
	}
}

// SortViews sorts views in place, newest or most expensive first. Ties keep server order.
func SortViews(views []View, key order.SortKey) {
	switch key {
	case order.SortByTotal:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Total.GreaterThan(views[j].Total)
		})
	default:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].OrderedAt.After(views[j].OrderedAt)
		})
	}
}
