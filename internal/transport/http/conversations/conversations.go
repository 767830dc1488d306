package conversations

import (
	"net/http"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/conversation"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/transport/http/response"
	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/worker/syncengine"
)

type store interface {
	Conversations() []conversation.Summary
	Conversation(counterpartID int64) (conversation.Conversation, error)
	UnreadTotal() int
}

type engine interface {
	OpenConversation(counterpartID int64) syncengine.Subscription
	CloseConversation(counterpartID int64)
}

type listConversationsResponse struct {
	Conversations []conversation.Summary `json:"conversations"`
	UnreadTotal   int                    `json:"unreadTotal"`
}

// ListConversations returns the locally held conversations, most recent first.
func ListConversations(w http.ResponseWriter, _ *http.Request, store store) {
	response.JSON(w, http.StatusOK, listConversationsResponse{
		Conversations: store.Conversations(),
		UnreadTotal:   store.UnreadTotal(),
	})
}

func GetConversation(w http.ResponseWriter, r *http.Request, store store) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	conv, err := store.Conversation(id)
	if err != nil {
		response.Error(w, err)

		return
	}

	response.JSON(w, http.StatusOK, conv)
}

// OpenConversation makes the thread the one being read and starts polling it.
func OpenConversation(w http.ResponseWriter, r *http.Request, engine engine) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	engine.OpenConversation(id)
	w.WriteHeader(http.StatusAccepted)
}

func CloseConversation(w http.ResponseWriter, r *http.Request, engine engine) {
	id, err := response.PathID(r, "id")
	if err != nil {
		response.Error(w, err)

		return
	}

	engine.CloseConversation(id)
	w.WriteHeader(http.StatusNoContent)
}
