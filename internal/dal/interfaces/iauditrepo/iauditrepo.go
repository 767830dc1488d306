package iauditrepo

import (
	"context"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/auditlog"
)

// IAuditRepository is interface for the item status audit repository.
type IAuditRepository interface {
	SaveStatusChanges(ctx context.Context, changes []auditlog.ItemStatusChange) error
	ListByItem(ctx context.Context, itemID int64) ([]auditlog.ItemStatusChange, error)
}
