package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "memory"
log_level = "debug"

[registry]
admin = "0x00000000000000000000000000000000000000ad"
custody_address = "0x00000000000000000000000000000000000000c0"
min_stake = "100"
default_duration_days = 3
resolution_period = "48h"
yield_rate_bps = 250

[registry.genesis]
"0x000000000000000000000000000000000000a11c" = "5000"

[server]
port = 9100
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "betm3.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Mode)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 48*time.Hour, cfg.Registry.ResolutionPeriod.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 365, cfg.Registry.MaxDurationDays)
	assert.Equal(t, 5*time.Minute, cfg.Auth.MaxSkew.Duration)

	p, err := cfg.Registry.Params()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xad"), p.Owner)
	assert.Equal(t, int64(100), p.MinStake.Int64())
	assert.Equal(t, 72*time.Hour, p.DefaultDuration)
	assert.Equal(t, uint64(250), p.YieldRateBps)
	assert.True(t, p.AdminRequiresTimeout)

	genesis, err := cfg.Registry.GenesisBalances()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), genesis[common.HexToAddress("0xa11c")].Int64())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BETM3_REGISTRY_YIELD_RATE_BPS", "700")
	t.Setenv("BETM3_AUTH_MAX_SKEW", "30s")
	t.Setenv("BETM3_SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Equal(t, 700, cfg.Registry.YieldRateBps)
	assert.Equal(t, 30*time.Second, cfg.Auth.MaxSkew.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Registry.Admin = "nope"
	cfg.Registry.CustodyAddress = "0x0000000000000000000000000000000000000000"
	cfg.Registry.MinStake = "-1"
	cfg.Registry.YieldRateBps = 10_001

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		"registry: admin",
		"custody_address must not be the zero address",
		"min_stake",
		"yield_rate_bps must be 0-10000",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsCustodyAsAdmin(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "memory"
	cfg.Registry.Admin = "0x00000000000000000000000000000000000000C0"
	cfg.Registry.CustodyAddress = "0x00000000000000000000000000000000000000c0"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custody_address must differ from admin")
}

func TestValidateSkipsPersistenceInMemoryMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "memory"
	cfg.Registry.Admin = "0x00000000000000000000000000000000000000ad"
	cfg.Registry.CustodyAddress = "0x00000000000000000000000000000000000000c0"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	require.NoError(t, cfg.Validate())

	cfg.Mode = "server"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: host")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.S3.SecretKey = "s3cret"
	cfg.Notify.TelegramToken = ""

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "", out.Notify.TelegramToken)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)

	out.Notify.Events[0] = "mutated"
	assert.Equal(t, "bet_resolved", cfg.Notify.Events[0])
}
