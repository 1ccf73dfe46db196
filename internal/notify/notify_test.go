package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersAlerts(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, []string{AlertBetResolved, " error "}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), AlertBetResolved, "a", "m"))
	require.NoError(t, n.Notify(context.Background(), AlertAwaitingAdmin, "b", "m"))
	require.NoError(t, n.Notify(context.Background(), AlertError, "c", "m"))
	assert.Equal(t, []string{"a", "c"}, s.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	require.NoError(t, n.Notify(context.Background(), "anything", "x", ""))
	assert.Len(t, s.titles, 1)
}

func TestNotifyCollectsSenderErrors(t *testing.T) {
	good := &recordingSender{}
	bad := &recordingSender{err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), AlertError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, good.titles, 1)
}

func TestPublishEvents(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, nil, quietLogger())

	events := []domain.Event{
		{Type: domain.EventBetJoined, BetID: 1, Data: domain.BetJoined{BetID: 1}},
		{Type: domain.EventBetResolved, BetID: 1, Data: domain.BetResolved{BetID: 1, WinningOutcome: true, SimulatedYield: "10"}},
		{Type: domain.EventBetResolutionCancelled, BetID: 2, Data: domain.BetResolutionCancelled{BetID: 2}},
	}
	require.NoError(t, n.PublishEvents(context.Background(), events))
	assert.Equal(t, []string{"Bet #1 resolved", "Bet #2 cancelled"}, s.titles)
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	require.NoError(t, n.Notify(context.Background(), AlertError, "t", "m"))

	n = NewNotifier(nil, nil, quietLogger())
	require.NoError(t, n.AwaitingAdmin(context.Background(), domain.BetDetails{ID: 3, ResolutionDeadline: time.Now()}))
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 400")
}
