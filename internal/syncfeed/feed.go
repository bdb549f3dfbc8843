// Package syncfeed pushes progress-change events to connected UI clients
// over websockets, so collaborators can show completion and syncing state
// without polling.
package syncfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pagefold/trackd/internal/progress"
)

const subscriberBuffer = 16

// WireEvent is the JSON payload sent to feed subscribers.
type WireEvent struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	UnitID int       `json:"unit_id,omitempty"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// Hub fans progress events out to websocket subscribers. It implements
// progress.Notifier. Slow subscribers are dropped rather than blocking the
// tracker.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Publish broadcasts a progress event to all subscribers.
func (h *Hub) Publish(e progress.Event) {
	payload, err := json.Marshal(WireEvent{
		ID:     uuid.NewString(),
		Type:   e.Type,
		UnitID: e.UnitID,
		UserID: e.UserID,
		At:     time.Now().UTC(),
	})
	if err != nil {
		slog.Error("marshaling feed event failed", "type", e.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			// Subscriber is not keeping up; disconnect it.
			delete(h.subs, ch)
			close(ch)
			slog.Warn("dropping slow feed subscriber")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Handler upgrades the request to a websocket and streams feed events until
// the client disconnects.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// We never expect inbound messages; CloseRead cancels the context when
	// the client goes away.
	ctx := conn.CloseRead(r.Context())

	ch, cancel := h.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, done := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			done()
			if err != nil {
				return
			}
		}
	}
}
