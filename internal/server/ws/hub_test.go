package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

type envelope struct {
	Type  string          `json:"type"`
	BetID uint64          `json:"bet_id"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, bus domain.SignalBus) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "memory"})
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHubDeliversPublishedEvents(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, "")
	assert.Equal(t, "engine_status", read(t, conn).Type)

	require.NoError(t, hub.PublishEvents(context.Background(), []domain.Event{
		{Type: domain.EventBetCreated, BetID: 1, Data: domain.BetCreated{ID: 1}},
	}))
	got := read(t, conn)
	assert.Equal(t, string(domain.EventBetCreated), got.Type)
	assert.Equal(t, uint64(1), got.BetID)
}

func TestHubBetFilter(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv, "?bet=2")
	assert.Equal(t, "engine_status", read(t, conn).Type)

	require.NoError(t, hub.PublishEvents(context.Background(), []domain.Event{
		{Type: domain.EventBetJoined, BetID: 1},
		{Type: domain.EventBetJoined, BetID: 2},
	}))
	assert.Equal(t, uint64(2), read(t, conn).BetID)
}

type chanBus struct {
	ch chan domain.Message
}

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(context.Context, string) (<-chan domain.Message, error) {
	return b.ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestHubForwardsBusMessages(t *testing.T) {
	bus := &chanBus{ch: make(chan domain.Message, 4)}
	_, srv := startHub(t, bus)
	conn := dial(t, srv, "")
	assert.Equal(t, "engine_status", read(t, conn).Type)

	bus.ch <- domain.Message{Channel: "bets:9", Payload: []byte(`{"type":"bet_joined","bet_id":9}`)}
	bus.ch <- domain.Message{Channel: "bets", Payload: []byte(`{"type":"bet_resolved","bet_id":9}`)}
	assert.Equal(t, "bet_resolved", read(t, conn).Type)
}

func TestHandleSubscriptionIgnoresForeignChannels(t *testing.T) {
	c := &client{subs: map[string]bool{AllBets: true}}
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"bets:3", "prices"}})
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{AllBets}})

	assert.True(t, c.isSubscribed("bets:3"))
	assert.False(t, c.isSubscribed("prices"))
	assert.False(t, c.isSubscribed(AllBets))
}

func TestHubStopsCleanly(t *testing.T) {
	hub := NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "memory"})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()

	handled := make(chan struct{}, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r)
		handled <- struct{}{}
	}))
	defer srv.Close()

	before := dial(t, srv, "")
	assert.Equal(t, "engine_status", read(t, before).Type)
	<-handled

	cancel()
	select {
	case err := <-stopped:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// The open connection is closed by the server.
	require.NoError(t, before.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := before.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection was left open")
	}

	// A late connection is refused instead of blocking its handler.
	after := dial(t, srv, "")
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler blocked after hub stopped")
	}
	require.NoError(t, after.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = after.ReadMessage()
	require.Error(t, err)
}

