package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/visioninhope/BetM3/internal/blob/s3"
	"github.com/visioninhope/BetM3/internal/cache/redis"
	"github.com/visioninhope/BetM3/internal/config"
	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/notify"
	"github.com/visioninhope/BetM3/internal/server/handler"
	"github.com/visioninhope/BetM3/internal/server/middleware"
	"github.com/visioninhope/BetM3/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the modes need. Fields
// left nil were not configured for the current mode.
type Dependencies struct {
	Params  domain.Params
	Genesis map[common.Address]*big.Int

	// Stores
	StateStore *postgres.StateStore
	EventStore domain.EventStore
	AuditStore domain.AuditStore

	// Caches
	SignalBus   domain.SignalBus
	Publisher   domain.EventPublisher
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	ReplayGuard domain.ReplayGuard

	// Blob storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Checks feeds the health endpoint.
	Checks map[string]handler.Check
}

// needsPersistence returns true for modes that keep the registry in
// PostgreSQL and coordinate through Redis.
func needsPersistence(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that export to object storage.
func needsS3(mode string, cfg *config.Config) bool {
	return mode == "full" && cfg.Archive.Enabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	params, err := cfg.Registry.Params()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	genesis, err := cfg.Registry.GenesisBalances()
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	deps := &Dependencies{
		Params:  params,
		Genesis: genesis,
		Checks:  make(map[string]handler.Check),
	}

	mode := strings.ToLower(cfg.Mode)
	if needsPersistence(mode) {
		// --- PostgreSQL ---
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.StateStore = postgres.NewStateStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping

		// --- Redis ---
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		bus := redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.SignalBus = bus
		deps.Publisher = redis.NewEventPublisher(bus)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.ReplayGuard = redis.NewReplayGuard(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.RateLimiter = middleware.NewLocalRateLimiter()
		deps.ReplayGuard = middleware.NewLocalReplayGuard(2 * cfg.Auth.MaxSkew.Duration)
	}

	// --- S3 blob storage ---
	if needsS3(mode, cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client), deps.AuditStore)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
