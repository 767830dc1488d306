package sendmessage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
)

type service interface {
	Send(ctx context.Context, receiverID int64, body string) (conversation.Message, error)
}

type sendMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

func (r *sendMessageRequest) Validate() error {
	return validator.New().Struct(r)
}

// SendMessage sends a message to the counterpart named in the path.
func SendMessage(w http.ResponseWriter, r *http.Request, service service) {
	receiverID, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	req := sendMessageRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, fmt.Errorf("%w: %w", response.ErrBadRequest, err))

		return
	}

	if err := req.Validate(); err != nil {
		response.Error(w, fmt.Errorf("%w: %w", response.ErrBadRequest, err))

		return
	}

	msg, err := service.Send(r.Context(), receiverID, req.Body)
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusCreated, msg)
}
