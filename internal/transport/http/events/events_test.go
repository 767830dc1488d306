package events

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/event"
)

type fakeSubscriber struct {
	events    []event.Event
	cancelled bool
}

func (f *fakeSubscriber) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)

	return ch, func() { f.cancelled = true }
}

func TestStreamWritesEvents(t *testing.T) {
	ev := event.New(event.TypeUnreadChanged, event.UnreadChanged{Total: 3})
	sub := &fakeSubscriber{events: []event.Event{ev}}

	rec := httptest.NewRecorder()
	Stream(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil), sub)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "id: "+ev.ID.String()+"\n")
	assert.Contains(t, rec.Body.String(), "event: unread.changed\n")
	assert.Contains(t, rec.Body.String(), `"total":3`)
	assert.True(t, sub.cancelled)
}
