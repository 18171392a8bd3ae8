package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/agorahq/arena/internal/platform/requestctx"
	"github.com/agorahq/arena/internal/services/battle/broadcast"
)

// sseHeartbeatInterval paces comment frames that keep idle connections alive
// through proxies.
const sseHeartbeatInterval = 30 * time.Second

// battleEvents streams one battle's live events. The channel is public;
// anyone may spectate.
func (h *handlers) battleEvents(w http.ResponseWriter, r *http.Request) {
	h.streamChannel(w, r, r.PathValue("id"))
}

// userEvents streams the authenticated user's personal pushes: incoming
// challenges, turn handoffs, and battle endings.
func (h *handlers) userEvents(w http.ResponseWriter, r *http.Request) {
	h.streamChannel(w, r, broadcast.UserChannel(requestctx.UserIDFromContext(r.Context())))
}

func (h *handlers) streamChannel(w http.ResponseWriter, r *http.Request, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := h.hub.Subscribe(channel)
	defer client.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, open := <-client.Events():
			if !open {
				return
			}
			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.Printf("marshal sse payload: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
