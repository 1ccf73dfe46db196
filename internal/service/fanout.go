package service

import (
	"context"
	"errors"

	"github.com/visioninhope/BetM3/internal/domain"
)

// Fanout publishes committed events to several publishers. Every publisher
// is attempted; failures are joined.
type Fanout []domain.EventPublisher

// PublishEvents implements domain.EventPublisher.
func (f Fanout) PublishEvents(ctx context.Context, events []domain.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
