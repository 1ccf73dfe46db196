// Package config defines the top-level configuration for the bet engine and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BETM3_* environment variables.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RegistryConfig holds the bet registry parameters used when no persisted
// state exists yet. Once the registry has been persisted, stored parameters
// win over these values.
type RegistryConfig struct {
	Admin                string   `toml:"admin"`
	CustodyAddress       string   `toml:"custody_address"`
	MinStake             string   `toml:"min_stake"`
	DefaultDurationDays  int      `toml:"default_duration_days"`
	ResolutionPeriod     duration `toml:"resolution_period"`
	YieldRateBps         int      `toml:"yield_rate_bps"`
	MaxDurationDays      int      `toml:"max_duration_days"`
	AdminRequiresTimeout bool     `toml:"admin_requires_timeout"`
	// Genesis maps addresses to their initial token balance (decimal string).
	Genesis map[string]string `toml:"genesis"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	LeaseTTL     duration `toml:"lease_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls export of settled bets and registry snapshots.
type ArchiveConfig struct {
	Enabled          bool     `toml:"enabled"`
	Interval         duration `toml:"interval"`
	SnapshotInterval duration `toml:"snapshot_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "72h", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled          bool     `toml:"enabled"`
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	RateLimitPerMin  int      `toml:"rate_limit_per_min"`
	MaxBodyBytes     int64    `toml:"max_body_bytes"`
	ShutdownDeadline duration `toml:"shutdown_deadline"`
}

// AuthConfig controls request signature verification.
type AuthConfig struct {
	MaxSkew duration `toml:"max_skew"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Registry: RegistryConfig{
			MinStake:             "100000000000000000000", // 100 tokens at 18 decimals
			DefaultDurationDays:  7,
			ResolutionPeriod:     duration{72 * time.Hour},
			YieldRateBps:         0,
			MaxDurationDays:      365,
			AdminRequiresTimeout: true,
			Genesis:              map[string]string{},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "betm3",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 100_000,
			LeaseTTL:     duration{15 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "betm3-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:          true,
			Interval:         duration{time.Minute},
			SnapshotInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:          true,
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000"},
			RateLimitPerMin:  120,
			MaxBodyBytes:     1 << 16,
			ShutdownDeadline: duration{10 * time.Second},
		},
		Auth: AuthConfig{
			MaxSkew: duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"bet_resolved", "bet_cancelled", "awaiting_admin", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"memory": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, memory, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Registry
	if !common.IsHexAddress(c.Registry.Admin) {
		errs = append(errs, fmt.Sprintf("registry: admin %q is not a hex address", c.Registry.Admin))
	}
	if !common.IsHexAddress(c.Registry.CustodyAddress) {
		errs = append(errs, fmt.Sprintf("registry: custody_address %q is not a hex address", c.Registry.CustodyAddress))
	} else if common.HexToAddress(c.Registry.CustodyAddress) == (common.Address{}) {
		errs = append(errs, "registry: custody_address must not be the zero address")
	} else if common.IsHexAddress(c.Registry.Admin) &&
		common.HexToAddress(c.Registry.CustodyAddress) == common.HexToAddress(c.Registry.Admin) {
		errs = append(errs, "registry: custody_address must differ from admin")
	}
	if v, ok := new(big.Int).SetString(c.Registry.MinStake, 10); !ok || v.Sign() <= 0 {
		errs = append(errs, fmt.Sprintf("registry: min_stake %q must be a positive integer", c.Registry.MinStake))
	}
	if c.Registry.DefaultDurationDays < 1 {
		errs = append(errs, "registry: default_duration_days must be >= 1")
	}
	if c.Registry.MaxDurationDays > 0 && c.Registry.DefaultDurationDays > c.Registry.MaxDurationDays {
		errs = append(errs, "registry: default_duration_days must not exceed max_duration_days")
	}
	if c.Registry.ResolutionPeriod.Duration <= 0 {
		errs = append(errs, "registry: resolution_period must be positive")
	}
	if c.Registry.YieldRateBps < 0 || c.Registry.YieldRateBps > 10_000 {
		errs = append(errs, fmt.Sprintf("registry: yield_rate_bps must be 0-10000, got %d", c.Registry.YieldRateBps))
	}
	for addr, bal := range c.Registry.Genesis {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("registry: genesis address %q is not a hex address", addr))
		}
		if v, ok := new(big.Int).SetString(bal, 10); !ok || v.Sign() < 0 {
			errs = append(errs, fmt.Sprintf("registry: genesis balance %q for %s must be a non-negative integer", bal, addr))
		}
	}

	needsPersistence := c.Mode == "server" || c.Mode == "full"

	// Postgres
	if needsPersistence {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}

		// Redis
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LeaseTTL.Duration < time.Second {
			errs = append(errs, "redis: lease_ttl must be at least 1s")
		}
	}

	// S3
	if c.Mode == "full" && c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.MaxBodyBytes <= 0 {
			errs = append(errs, "server: max_body_bytes must be positive")
		}
	}
	if c.Auth.MaxSkew.Duration <= 0 {
		errs = append(errs, "auth: max_skew must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
