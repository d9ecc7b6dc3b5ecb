// Package sse fans session events out to connected operator streams.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/instawin/merchprize/internal/domain/session"
)

var (
	ErrClientNotFound = errors.New("SSE client not found")
	ErrChannelFull    = errors.New("SSE message channel full")
)

const defaultBuffer = 32

// Message is one server-sent event. A message without an Event is written as a comment line.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// KeepAlive returns the comment message streams send while idle.
func KeepAlive() *Message {
	return &Message{Data: json.RawMessage("ping")}
}

// IsComment reports whether m carries no event.
func (m *Message) IsComment() bool {
	return m.Event == ""
}

// Client is a connected stream. GameID narrows delivery to one game when set.
type Client struct {
	ID       string
	GameID   string
	Messages chan *Message

	closeOnce sync.Once
}

// NewClient creates a client with a buffered message channel.
func NewClient(id, gameID string) *Client {
	return &Client{
		ID:       id,
		GameID:   gameID,
		Messages: make(chan *Message, defaultBuffer),
	}
}

// Close closes the message channel once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Messages) })
}

// Hub manages SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("component", "sse").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ID]; ok {
		old.Close()
	}
	h.clients[client.ID] = client
}

// Unregister removes client. A newer client registered under the same ID is left alone.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Close()
	if h.clients[client.ID] == client {
		delete(h.clients, client.ID)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts a session event. Slow clients drop messages.
func (h *Hub) Notify(_ context.Context, event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(event.Type)).Msg("failed to encode event")
		return
	}
	msg := &Message{Event: string(event.Type), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.GameID != "" && c.GameID != event.GameID {
			continue
		}
		if !trySend(c, msg) {
			h.logger.Warn().Str("clientId", c.ID).Msg("dropped event for slow client")
		}
	}
}

func (h *Hub) SendToClient(clientID string, message *Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[clientID]
	if c == nil {
		return ErrClientNotFound
	}
	if !trySend(c, message) {
		return ErrChannelFull
	}
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, msg *Message) bool {
	select {
	case c.Messages <- msg:
		return true
	default:
		return false
	}
}
