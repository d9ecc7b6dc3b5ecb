package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/infrastructure/sse"
)

const defaultKeepAlive = 15 * time.Second

func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	client := sse.NewClient(clientID, r.URL.Query().Get("gameId"))
	s.sseHub.Register(client)
	defer s.sseHub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	interval := s.keepAlive
	if interval <= 0 {
		interval = defaultKeepAlive
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case msg, open := <-client.Messages:
			if !open {
				return
			}
			writeMessage(w, msg)
			flusher.Flush()
		case <-ticker.C:
			err := s.sseHub.SendToClient(clientID, sse.KeepAlive())
			if errors.Is(err, sse.ErrClientNotFound) {
				return
			}
			if errors.Is(err, sse.ErrChannelFull) {
				s.logger.Debug().Str("clientId", clientID).Msg("stream backlog, skipping keep-alive")
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeMessage(w http.ResponseWriter, msg *sse.Message) {
	if msg.IsComment() {
		_, _ = w.Write([]byte(": "))
		_, _ = w.Write(msg.Data)
		_, _ = w.Write([]byte("\n\n"))
		return
	}
	_, _ = w.Write([]byte("event: " + msg.Event + "\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(msg.Data)
	_, _ = w.Write([]byte("\n\n"))
}
