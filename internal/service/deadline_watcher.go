package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/ledger"
)

// AdminAlerter is told about bets that can only be settled by the
// administrator.
type AdminAlerter interface {
	AwaitingAdmin(ctx context.Context, d domain.BetDetails) error
}

// DeadlineWatcher scans the registry for bets whose resolution window closed
// without consensus and alerts once per bet.
type DeadlineWatcher struct {
	registry *ledger.Registry
	alerter  AdminAlerter
	interval time.Duration
	alerted  map[uint64]bool
	logger   *slog.Logger
}

// NewDeadlineWatcher creates a DeadlineWatcher polling every interval.
func NewDeadlineWatcher(registry *ledger.Registry, alerter AdminAlerter, interval time.Duration, logger *slog.Logger) *DeadlineWatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DeadlineWatcher{
		registry: registry,
		alerter:  alerter,
		interval: interval,
		alerted:  make(map[uint64]bool),
		logger:   logger.With(slog.String("component", "deadline_watcher")),
	}
}

// Run scans on every tick until ctx is cancelled.
func (w *DeadlineWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan alerts for every newly stuck bet and returns their ids.
func (w *DeadlineWatcher) Scan(ctx context.Context) []uint64 {
	var fresh []uint64
	for _, d := range w.registry.ListBets(domain.ListOpts{}) {
		if !d.AwaitingAdmin {
			delete(w.alerted, d.ID)
			continue
		}
		if w.alerted[d.ID] {
			continue
		}
		if err := w.alerter.AwaitingAdmin(ctx, d); err != nil {
			w.logger.WarnContext(ctx, "awaiting-admin alert failed",
				slog.Uint64("bet_id", d.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.alerted[d.ID] = true
		fresh = append(fresh, d.ID)
	}
	return fresh
}
