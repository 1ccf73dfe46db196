package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/visioninhope/BetM3/internal/cache/redis"
	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/ledger"
	"github.com/visioninhope/BetM3/internal/metrics"
	"github.com/visioninhope/BetM3/internal/server"
	"github.com/visioninhope/BetM3/internal/server/handler"
	"github.com/visioninhope/BetM3/internal/server/middleware"
	"github.com/visioninhope/BetM3/internal/server/ws"
	"github.com/visioninhope/BetM3/internal/service"
)

const deadlineScanInterval = time.Minute

// engine is the registry plus everything that serves it.
type engine struct {
	registry *ledger.Registry
	bets     *service.BetService
	hub      *ws.Hub
	metrics  *metrics.Metrics
}

// MemoryMode runs the registry in process without persistence. State is lost
// on exit.
func (a *App) MemoryMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting memory mode; registry state is not persisted")

	g, ctx := errgroup.WithContext(ctx)
	hub := a.newHub(deps)
	reg := ledger.New(deps.Params, ledger.NewBook(deps.Genesis), a.registryOptions(deps, hub, nil)...)
	eng := a.buildEngine(deps, reg, hub)
	a.startEngine(ctx, g, deps, eng)
	return g.Wait()
}

// ServerMode restores the registry from PostgreSQL, takes the writer lease
// and serves the API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if err := a.holdWriterLease(ctx, g, deps.LockManager); err != nil {
		return err
	}
	eng, err := a.restoreEngine(ctx, deps)
	if err != nil {
		return err
	}
	a.startEngine(ctx, g, deps, eng)
	return g.Wait()
}

// FullMode is ServerMode plus the archive loop exporting settled bets and
// registry snapshots to object storage.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if err := a.holdWriterLease(ctx, g, deps.LockManager); err != nil {
		return err
	}
	eng, err := a.restoreEngine(ctx, deps)
	if err != nil {
		return err
	}
	a.startEngine(ctx, g, deps, eng)

	if deps.Archiver != nil {
		archiveSvc := service.NewArchiveService(
			eng.registry,
			deps.StateStore,
			deps.EventStore,
			deps.Archiver,
			a.cfg.Archive.Interval.Duration,
			a.cfg.Archive.SnapshotInterval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return archiveSvc.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "full mode: archive disabled")
	}
	return g.Wait()
}

// restoreEngine seeds the store on first start and rebuilds the registry from
// it. Stored parameters win over the configured ones.
func (a *App) restoreEngine(ctx context.Context, deps *Dependencies) (*engine, error) {
	if deps.StateStore == nil {
		return nil, fmt.Errorf("app: mode %s requires postgres", a.cfg.Mode)
	}
	if err := deps.StateStore.Seed(ctx, deps.Params, deps.Genesis); err != nil {
		return nil, fmt.Errorf("app: seed registry: %w", err)
	}
	snap, err := deps.StateStore.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load registry: %w", err)
	}
	a.logger.InfoContext(ctx, "registry restored",
		slog.Uint64("bet_counter", snap.BetCounter),
		slog.Int("bets", len(snap.Bets)),
		slog.Int("accounts", len(snap.Balances)),
	)
	hub := a.newHub(deps)
	reg := ledger.Restore(snap, a.registryOptions(deps, hub, deps.StateStore)...)
	return a.buildEngine(deps, reg, hub), nil
}

func (a *App) newHub(deps *Dependencies) *ws.Hub {
	return ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
}

// registryOptions builds the ledger options shared by all modes. The hub is
// fed directly when there is no bus to carry events to it.
func (a *App) registryOptions(deps *Dependencies, hub *ws.Hub, committer domain.Committer) []ledger.Option {
	publishers := service.Fanout{deps.Notifier}
	if deps.Publisher != nil {
		publishers = append(publishers, deps.Publisher)
	} else {
		publishers = append(publishers, hub)
	}

	opts := []ledger.Option{
		ledger.WithPublisher(publishers),
		ledger.WithLogger(a.logger),
	}
	if committer != nil {
		opts = append(opts, ledger.WithCommitter(committer))
	}
	return opts
}

func (a *App) buildEngine(deps *Dependencies, reg *ledger.Registry, hub *ws.Hub) *engine {
	m := metrics.New(reg.BetCounter)
	return &engine{
		registry: reg,
		bets:     service.NewBetService(reg, deps.EventStore, deps.AuditStore, m, a.logger),
		hub:      hub,
		metrics:  m,
	}
}

// startEngine adds the WS hub, the deadline watcher and, if enabled, the
// HTTP server to g.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) {
	g.Go(func() error {
		return eng.hub.Run(ctx)
	})

	watcher := service.NewDeadlineWatcher(eng.registry, deps.Notifier, deadlineScanInterval, a.logger)
	g.Go(func() error {
		return watcher.Run(ctx)
	})

	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.cfg.Mode, deps.Checks, a.logger),
		Bets:     handler.NewBetHandler(eng.bets, a.logger),
		Admin:    handler.NewAdminHandler(eng.bets, a.logger),
		Registry: handler.NewRegistryHandler(eng.bets, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		Auth: middleware.AuthConfig{
			MaxSkew:      a.cfg.Auth.MaxSkew.Duration,
			MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
			Guard:        deps.ReplayGuard,
			Logger:       a.logger,
		},
		Limiter: deps.RateLimiter,
		Metrics: eng.metrics.Handler(),
	}, handlers, eng.hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownDeadline.Duration)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// holdWriterLease acquires the registry writer lease and keeps extending it.
// Losing the lease stops the engine so a second process never writes
// concurrently.
func (a *App) holdWriterLease(ctx context.Context, g *errgroup.Group, locks domain.LockManager) error {
	if locks == nil {
		return fmt.Errorf("app: mode %s requires redis", a.cfg.Mode)
	}
	ttl := a.cfg.Redis.LeaseTTL.Duration
	lease, err := locks.Acquire(ctx, redis.WriterLockKey, ttl)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another engine holds the writer lease: %w", err)
		}
		return fmt.Errorf("app: acquire writer lease: %w", err)
	}
	a.logger.InfoContext(ctx, "writer lease acquired", slog.Duration("ttl", ttl))

	g.Go(func() error {
		defer lease.Release()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := lease.Extend(ctx, ttl); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return fmt.Errorf("app: writer lease lost: %w", err)
				}
			}
		}
	})
	return nil
}
