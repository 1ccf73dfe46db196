package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visioninhope/BetM3/internal/domain"
)

// ReplayGuard implements domain.ReplayGuard with SETNX on the request
// fingerprint.
type ReplayGuard struct {
	rdb *redis.Client
}

// NewReplayGuard creates a ReplayGuard backed by the given Client.
func NewReplayGuard(c *Client) *ReplayGuard {
	return &ReplayGuard{rdb: c.Underlying()}
}

func replayKey(fingerprint string) string {
	return "replay:" + fingerprint
}

// Remember records fingerprint for ttl. It returns domain.ErrReplayed when the
// fingerprint was already seen.
func (g *ReplayGuard) Remember(ctx context.Context, fingerprint string, ttl time.Duration) error {
	ok, err := g.rdb.SetNX(ctx, replayKey(fingerprint), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: remember %s: %w", fingerprint, err)
	}
	if !ok {
		return domain.ErrReplayed
	}
	return nil
}

// Compile-time interface check.
var _ domain.ReplayGuard = (*ReplayGuard)(nil)
