package itemhistory

import (
	"context"
	"net/http"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/auditlog"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
)

type service interface {
	ItemHistory(ctx context.Context, itemID int64) ([]auditlog.ItemStatusChange, error)
}

type itemHistoryResponse struct {
	History []auditlog.ItemStatusChange `json:"history"`
}

// ItemHistory returns the status transitions recorded for one item.
func ItemHistory(w http.ResponseWriter, r *http.Request, service service) {
	itemID, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	history, err := service.ItemHistory(r.Context(), itemID)
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusOK, itemHistoryResponse{History: history})
}
