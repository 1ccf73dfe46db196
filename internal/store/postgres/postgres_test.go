package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/betm3?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "betm3"}))
	assert.Equal(t, "postgres://u:p@db:6543/betm3?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, User: "u", Password: "p", Database: "betm3", SSLMode: "require"}))
	assert.Equal(t, "postgres://override", DSN(ClientConfig{DSN: "postgres://override", Host: "ignored"}))
}

func TestMigrationsEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_registry.sql", names[0])
	assert.IsIncreasing(t, names)

	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	for _, table := range []string{"registry_params", "bets", "bet_participants", "bet_votes", "balances", "bet_events", "audit_log"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestPaginate(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := paginate("SELECT * FROM bet_events WHERE bet_id = $1", []any{int64(3)},
		"at", "id ASC", domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT * FROM bet_events WHERE bet_id = $1 AND at >= $2 ORDER BY id ASC LIMIT $3 OFFSET $4", query)
	assert.Equal(t, []any{int64(3), since, 10, 20}, args)

	query, args = paginate("SELECT * FROM audit_log WHERE 1=1", nil, "created_at", "created_at DESC", domain.ListOpts{})
	assert.Equal(t, "SELECT * FROM audit_log WHERE 1=1 ORDER BY created_at DESC", query)
	assert.Empty(t, args)
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, "123456789012345678901234567890", parseAmount("123456789012345678901234567890").String())
	assert.Equal(t, int64(0), parseAmount("not a number").Int64())
}
