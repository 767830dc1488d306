package order

import (
	"errors"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
)

// SortKey selects how order lists are sorted. Both keys sort descending.
type SortKey string

const (
	SortByDate  SortKey = "date"
	SortByTotal SortKey = "total"
)

var ErrInvalidSortKey = errors.New("invalid sort key")

// ParseSortKey parses a sort key; the empty string means SortByDate.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "", SortByDate:
		return SortByDate, nil
	case SortByTotal:
		return SortByTotal, nil
	default:
		return "", ErrInvalidSortKey
	}
}

// QueryOrdersModel represents filter parameters for listing orders.
type QueryOrdersModel struct {
	// Status keeps orders with at least one visible item in this status.
	Status *orderitem.Status `json:"status,omitempty"`
	SortBy SortKey           `json:"sortBy,omitempty"`
}
