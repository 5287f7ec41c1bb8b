package checkout

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"
)

// streamEvent is one state transition pushed to a connected client.
type streamEvent struct {
	Type      string    `json:"type"` // "snapshot", "transition", "error"
	Timestamp string    `json:"timestamp,omitempty"`
	Message   string    `json:"message,omitempty"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
}

// StreamAttempt handles GET /payments/checkout/{attemptID}/events. It
// upgrades to WebSocket, sends the current snapshot, then pushes every
// state transition until the attempt closes or the client disconnects.
func (h *Handler) StreamAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attemptID")
	machine, ok := h.machine(id)
	if !ok {
		http.Error(w, "attempt not found", http.StatusNotFound)
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		h.serveStream(conn, machine)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveStream(conn *websocket.Conn, machine *Machine) {
	events, cancel := machine.Subscribe()
	defer cancel()

	snap := machine.Snapshot()
	if err := websocket.JSON.Send(conn, streamEvent{
		Type:      "snapshot",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Snapshot:  &snap,
	}); err != nil {
		return
	}

	// Drain the client side so closed connections are noticed; inbound
	// payloads are ignored.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			var discard map[string]any
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-disconnected:
			return
		case next, ok := <-events:
			if !ok {
				_ = websocket.JSON.Send(conn, streamEvent{
					Type:      "error",
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Message:   "attempt closed",
				})
				return
			}
			if err := websocket.JSON.Send(conn, streamEvent{
				Type:      "transition",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Snapshot:  &next,
			}); err != nil {
				return
			}
		}
	}
}
