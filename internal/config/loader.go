package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BETM3_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETM3_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Registry ──
	setStr(&cfg.Registry.Admin, "BETM3_REGISTRY_ADMIN")
	setStr(&cfg.Registry.CustodyAddress, "BETM3_REGISTRY_CUSTODY_ADDRESS")
	setStr(&cfg.Registry.MinStake, "BETM3_REGISTRY_MIN_STAKE")
	setInt(&cfg.Registry.DefaultDurationDays, "BETM3_REGISTRY_DEFAULT_DURATION_DAYS")
	setDuration(&cfg.Registry.ResolutionPeriod, "BETM3_REGISTRY_RESOLUTION_PERIOD")
	setInt(&cfg.Registry.YieldRateBps, "BETM3_REGISTRY_YIELD_RATE_BPS")
	setInt(&cfg.Registry.MaxDurationDays, "BETM3_REGISTRY_MAX_DURATION_DAYS")
	setBool(&cfg.Registry.AdminRequiresTimeout, "BETM3_REGISTRY_ADMIN_REQUIRES_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BETM3_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BETM3_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BETM3_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BETM3_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BETM3_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BETM3_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BETM3_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BETM3_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BETM3_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BETM3_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BETM3_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETM3_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETM3_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETM3_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETM3_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETM3_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "BETM3_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.LeaseTTL, "BETM3_REDIS_LEASE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BETM3_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BETM3_S3_REGION")
	setStr(&cfg.S3.Bucket, "BETM3_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BETM3_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BETM3_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BETM3_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BETM3_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BETM3_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "BETM3_ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.SnapshotInterval, "BETM3_ARCHIVE_SNAPSHOT_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BETM3_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BETM3_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BETM3_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMin, "BETM3_SERVER_RATE_LIMIT_PER_MIN")
	setInt64(&cfg.Server.MaxBodyBytes, "BETM3_SERVER_MAX_BODY_BYTES")

	// ── Auth ──
	setDuration(&cfg.Auth.MaxSkew, "BETM3_AUTH_MAX_SKEW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETM3_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETM3_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETM3_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BETM3_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BETM3_MODE")
	setStr(&cfg.LogLevel, "BETM3_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
