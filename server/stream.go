package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// keepAliveFrame is an SSE comment; clients ignore it but proxies see traffic.
const keepAliveFrame = ": keep-alive\n\n"

// handleEvents streams change events as server-sent events. When no event
// arrives within the event timeout a keep-alive comment is written instead,
// so idle connections are never closed by the server.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, internalError("streaming unsupported"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.project.Subscribe()
	defer sub.Close()
	s.logger.Debug("event stream opened", "subscription", sub.ID(), "requestId", requestID(r.Context()))
	defer func() {
		s.logger.Debug("event stream closed", "subscription", sub.ID(), "dropped", sub.Dropped())
	}()

	for {
		event, ok, err := sub.Next(r.Context(), s.eventTimeout)
		if err != nil {
			return
		}

		var writeErr error
		if ok {
			data, marshalErr := json.Marshal(event)
			if marshalErr != nil {
				s.logger.Warn("failed to encode event", "path", event.Path, "error", marshalErr)
				continue
			}
			_, writeErr = fmt.Fprintf(w, "data: %s\n\n", data)
		} else {
			_, writeErr = fmt.Fprint(w, keepAliveFrame)
		}
		if writeErr != nil {
			return
		}
		flusher.Flush()
	}
}

var upgrader = websocket.Upgrader{
	// CORS is allow-all on the JSON API; the event socket follows suit.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEventsWS streams the same events over a WebSocket, one JSON text
// message per event, with a ping on every idle timeout.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.project.Subscribe()
	defer sub.Close()

	// The read loop only notices disconnects; clients send nothing.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for {
		event, ok, err := sub.Next(r.Context(), s.eventTimeout)
		if err != nil {
			return
		}

		deadline := time.Now().Add(s.eventTimeout)
		if !ok {
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(deadline)
		if err := conn.WriteJSON(event); err != nil {
			s.logger.Debug("websocket write failed", "subscription", sub.ID(), "error", err)
			return
		}
	}
}
