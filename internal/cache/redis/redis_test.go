package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

type memoryBus struct {
	published map[string][][]byte
	stream    [][]byte
	failOn    string
}

func (b *memoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	if channel == b.failOn {
		return errors.New("publish failed")
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memoryBus) Subscribe(context.Context, string) (<-chan domain.Message, error) {
	return nil, errors.New("not supported")
}

func (b *memoryBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.stream = append(b.stream, payload)
	return nil
}

func (b *memoryBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestEventPublisherFansOut(t *testing.T) {
	bus := &memoryBus{}
	pub := NewEventPublisher(bus)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := pub.PublishEvents(context.Background(), []domain.Event{
		{Type: domain.EventBetJoined, BetID: 4, At: at, Data: domain.BetJoined{BetID: 4, Stake: "10"}},
		{Type: domain.EventYieldRateChanged, At: at, Data: domain.YieldRateChanged{Previous: 0, Current: 50}},
	})
	require.NoError(t, err)

	assert.Len(t, bus.stream, 2)
	assert.Len(t, bus.published[ChannelBets], 2)
	require.Len(t, bus.published["bets:4"], 1)

	var decoded struct {
		Type  string `json:"type"`
		BetID uint64 `json:"bet_id"`
	}
	require.NoError(t, json.Unmarshal(bus.published["bets:4"][0], &decoded))
	assert.Equal(t, "bet_joined", decoded.Type)
	assert.Equal(t, uint64(4), decoded.BetID)
}

func TestEventPublisherContinuesAfterFailure(t *testing.T) {
	bus := &memoryBus{failOn: "bets:1"}
	pub := NewEventPublisher(bus)

	err := pub.PublishEvents(context.Background(), []domain.Event{
		{Type: domain.EventBetCreated, BetID: 1},
		{Type: domain.EventBetCreated, BetID: 2},
	})
	require.Error(t, err)
	assert.Len(t, bus.published["bets:2"], 1)
	assert.Len(t, bus.stream, 2)
}

func TestKeysAndPatterns(t *testing.T) {
	assert.Equal(t, "bets:17", BetChannel(17))
	assert.True(t, hasPattern(ChannelPattern))
	assert.False(t, hasPattern(ChannelBets))
	assert.Equal(t, "lock:betm3:writer", lockKey(WriterLockKey))
	assert.Equal(t, "ratelimit:ip:1.2.3.4", rateLimitKey("ip:1.2.3.4"))
	assert.Equal(t, "replay:abc", replayKey("abc"))
}

func TestStreamPayload(t *testing.T) {
	got, ok := streamPayload(map[string]any{"payload": "x"})
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got)

	_, ok = streamPayload(map[string]any{"other": "x"})
	assert.False(t, ok)
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
}
