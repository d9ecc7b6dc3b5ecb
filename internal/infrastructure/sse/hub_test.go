package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/domain/ledger"
	"github.com/instawin/merchprize/internal/domain/session"
)

func settledEvent(gameID string) session.Event {
	return session.Event{
		Type:    session.EventCycleSettled,
		GameID:  gameID,
		CycleID: uuid.New(),
		From:    session.StageReveal,
		Stage:   session.StageWager,
		Mode:    session.ModeBuy,
		Ledger:  ledger.Ledger{Settled: 2, Payout: 100},
		At:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifyBroadcastsToMatchingClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	all := NewClient("all", "")
	poc := NewClient("poc", "merch-poc")
	other := NewClient("other", "cash-only")
	hub.Register(all)
	hub.Register(poc)
	hub.Register(other)
	require.Equal(t, 3, hub.GetClientCount())

	ev := settledEvent("merch-poc")
	hub.Notify(context.Background(), ev)

	for _, c := range []*Client{all, poc} {
		select {
		case msg := <-c.Messages:
			assert.Equal(t, "cycle.settled", msg.Event)
			var got session.Event
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, ev, got)
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
	assert.Empty(t, other.Messages)
}

func TestSlowClientDropsMessages(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("slow", "")
	hub.Register(c)

	for i := 0; i < defaultBuffer+5; i++ {
		hub.Notify(context.Background(), settledEvent("g"))
	}
	assert.Len(t, c.Messages, defaultBuffer)
	assert.ErrorIs(t, hub.SendToClient("slow", &Message{Event: "ping"}), ErrChannelFull)
}

func TestUnregisterClosesClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("a", "")
	hub.Register(c)
	hub.Unregister(c)

	_, open := <-c.Messages
	assert.False(t, open)
	assert.ErrorIs(t, hub.SendToClient("a", &Message{}), ErrClientNotFound)

	hub.Register(NewClient("b", ""))
	hub.Stop()
	assert.Zero(t, hub.GetClientCount())
}

func TestReconnectKeepsNewClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	first := NewClient("op", "")
	hub.Register(first)
	second := NewClient("op", "")
	hub.Register(second)

	_, open := <-first.Messages
	assert.False(t, open)

	// the first stream's handler cleans up after the second one connected
	hub.Unregister(first)
	require.Equal(t, 1, hub.GetClientCount())

	hub.Notify(context.Background(), settledEvent("g"))
	select {
	case msg, open := <-second.Messages:
		require.True(t, open)
		assert.Equal(t, "cycle.settled", msg.Event)
	default:
		t.Fatal("reconnected client received nothing")
	}

	hub.Unregister(second)
	assert.Zero(t, hub.GetClientCount())
}

func TestKeepAliveIsComment(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("a", "")
	hub.Register(c)

	require.NoError(t, hub.SendToClient("a", KeepAlive()))
	msg := <-c.Messages
	assert.True(t, msg.IsComment())
	assert.Equal(t, "ping", string(msg.Data))
}
