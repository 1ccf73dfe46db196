package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/visioninhope/BetM3/internal/domain"
)

const (
	// ChannelBets carries every committed event.
	ChannelBets = "bets"
	// ChannelPattern matches ChannelBets and every per-bet channel.
	ChannelPattern = "bets*"
	// EventStream is the durable copy of ChannelBets.
	EventStream = "stream:bets"
)

// BetChannel names the per-bet channel.
func BetChannel(betID uint64) string {
	return ChannelBets + ":" + strconv.FormatUint(betID, 10)
}

// EventPublisher implements domain.EventPublisher on top of a SignalBus.
// Each event is appended to EventStream and published on ChannelBets and,
// for bet events, on the bet's own channel.
type EventPublisher struct {
	bus domain.SignalBus
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(bus domain.SignalBus) *EventPublisher {
	return &EventPublisher{bus: bus}
}

// PublishEvents delivers events in order. It keeps going after a failure and
// returns every error joined.
func (p *EventPublisher) PublishEvents(ctx context.Context, events []domain.Event) error {
	var errs []error
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("redis: marshal %s: %w", ev.Type, err))
			continue
		}
		if err := p.bus.StreamAppend(ctx, EventStream, payload); err != nil {
			errs = append(errs, err)
		}
		for _, ch := range eventChannels(ev) {
			if err := p.bus.Publish(ctx, ch, payload); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func eventChannels(ev domain.Event) []string {
	if ev.BetID == 0 {
		return []string{ChannelBets}
	}
	return []string{ChannelBets, BetChannel(ev.BetID)}
}

// Compile-time interface check.
var _ domain.EventPublisher = (*EventPublisher)(nil)
