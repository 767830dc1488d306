package listorders

import (
	"fmt"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/order"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/orderitem"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/ordersvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
)

type service interface {
	Orders(query order.QueryOrdersModel) []ordersvc.View
}

type queryOrdersRequest struct {
	Status string `schema:"status,omitempty"`
	SortBy string `schema:"sortBy,omitempty"`
}

func (q *queryOrdersRequest) ToModel() (order.QueryOrdersModel, error) {
	sortBy, err := order.ParseSortKey(q.SortBy)
	if err != nil {
		return order.QueryOrdersModel{}, fmt.Errorf("%w: %w", response.ErrBadRequest, err)
	}

	model := order.QueryOrdersModel{SortBy: sortBy}
	if q.Status != "" {
		status, err := orderitem.ParseStatus(q.Status)
		if err != nil {
			return order.QueryOrdersModel{}, fmt.Errorf("%w: %w", response.ErrBadRequest, err)
		}
		model.Status = &status
	}

	return model, nil
}

type listOrdersResponse struct {
	Orders []ordersvc.View `json:"orders"`
}

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Error(w, fmt.Errorf("%w: %w", response.ErrBadRequest, err))

		return
	}

	model, err := query.ToModel()
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusOK, listOrdersResponse{Orders: service.Orders(model)})
}
