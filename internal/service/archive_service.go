package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/visioninhope/BetM3/internal/blob/s3"
	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/ledger"
)

const archiveBatch = 100

// BetArchiver exports bets and registry snapshots to cold storage.
type BetArchiver interface {
	ArchiveBet(ctx context.Context, rec s3blob.BetArchive) (bool, error)
	ArchiveSnapshot(ctx context.Context, snap *domain.Snapshot) (string, error)
}

// ArchiveService periodically copies settled bets, with their event history,
// to object storage and writes full registry snapshots.
type ArchiveService struct {
	registry *ledger.Registry
	index    domain.ArchiveIndex
	events   domain.EventStore
	archiver BetArchiver
	interval time.Duration
	snapshot time.Duration
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService. A snapshotInterval of zero
// disables snapshots.
func NewArchiveService(
	registry *ledger.Registry,
	index domain.ArchiveIndex,
	events domain.EventStore,
	archiver BetArchiver,
	interval, snapshotInterval time.Duration,
	logger *slog.Logger,
) *ArchiveService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ArchiveService{
		registry: registry,
		index:    index,
		events:   events,
		archiver: archiver,
		interval: interval,
		snapshot: snapshotInterval,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run archives on every tick until ctx is cancelled. Failed runs are logged
// and retried on the next tick.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var snapC <-chan time.Time
	if s.snapshot > 0 {
		st := time.NewTicker(s.snapshot)
		defer st.Stop()
		snapC = st.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ArchiveSettled(ctx); err != nil {
				s.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		case <-snapC:
			if _, err := s.Snapshot(ctx); err != nil {
				s.logger.ErrorContext(ctx, "snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ArchiveSettled exports every settled bet not yet archived and returns how
// many were marked archived.
func (s *ArchiveService) ArchiveSettled(ctx context.Context) (int, error) {
	ids, err := s.index.ListUnarchived(ctx, archiveBatch)
	if err != nil {
		return 0, fmt.Errorf("archive_service: list unarchived: %w", err)
	}

	done := 0
	for _, id := range ids {
		if err := s.archiveBet(ctx, id); err != nil {
			return done, err
		}
		done++
	}
	if done > 0 {
		s.logger.InfoContext(ctx, "archived settled bets", slog.Int("count", done))
	}
	return done, nil
}

func (s *ArchiveService) archiveBet(ctx context.Context, id uint64) error {
	bet, err := s.registry.Bet(id)
	if err != nil {
		return fmt.Errorf("archive_service: bet %d: %w", id, err)
	}
	details, err := s.registry.GetBetDetails(id)
	if err != nil {
		return fmt.Errorf("archive_service: bet %d: %w", id, err)
	}
	events, err := s.events.ListByBet(ctx, id, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("archive_service: events of bet %d: %w", id, err)
	}

	uploaded, err := s.archiver.ArchiveBet(ctx, s3blob.BetArchive{
		Bet:        bet,
		Details:    details,
		Events:     events,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.index.MarkArchived(ctx, id); err != nil {
		return fmt.Errorf("archive_service: mark bet %d: %w", id, err)
	}
	s.logger.DebugContext(ctx, "bet archived",
		slog.Uint64("bet_id", id),
		slog.Bool("uploaded", uploaded),
	)
	return nil
}

// Snapshot uploads the full registry state and returns the object path.
func (s *ArchiveService) Snapshot(ctx context.Context) (string, error) {
	path, err := s.archiver.ArchiveSnapshot(ctx, s.registry.Snapshot())
	if err != nil {
		return "", fmt.Errorf("archive_service: snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "registry snapshot archived", slog.String("path", path))
	return path, nil
}
