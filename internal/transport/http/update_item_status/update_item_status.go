package updateitemstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	RequestStatusChange(ctx context.Context, itemID int64, target orderitem.Status, actorID int64) (orderitem.OrderItem, error)
}

// updateStatusRequest represents a status change request.
type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Validate validates the status change request.
func (r *updateStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// UpdateItemStatus handles a status change for one order item on behalf of actorID.
// An unknown status is a transition error, not a malformed request.
func UpdateItemStatus(w http.ResponseWriter, r *http.Request, service service, actorID int64) {
	itemID, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	req := updateStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, fmt.Errorf("%w: %w", response.ErrBadRequest, err))

		return
	}

	if err := req.Validate(); err != nil {
		response.Error(w, fmt.Errorf("%w: %w", response.ErrBadRequest, err))

		return
	}

	item, err := service.RequestStatusChange(r.Context(), itemID, orderitem.Status(req.Status), actorID)
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusOK, item)
}
