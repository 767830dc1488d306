package getorder

import (
	"net/http"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/services/ordersvc"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
)

type service interface {
	Order(id int64) (ordersvc.View, error)
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	view, err := service.Order(id)
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusOK, view)
}
