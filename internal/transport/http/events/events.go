package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
)

type subscriber interface {
	Subscribe() (<-chan event.Event, func())
}

const keepAliveInterval = 25 * time.Second

// Stream writes change notifications as server-sent events until the client goes away.
func Stream(w http.ResponseWriter, r *http.Request, sub subscriber) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	ch, cancel := sub.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("Error encoding event", "event_type", ev.Type, "error", err)

				continue
			}

			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
