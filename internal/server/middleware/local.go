package middleware

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/visioninhope/BetM3/internal/domain"
)

const localCacheSize = 16_384

// LocalRateLimiter is an in-process domain.RateLimiter for engines running
// without Redis. Each key gets a token bucket refilled at limit per window.
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewLocalRateLimiter creates a LocalRateLimiter.
func NewLocalRateLimiter() *LocalRateLimiter {
	c, _ := lru.New[string, *rate.Limiter](localCacheSize)
	return &LocalRateLimiter{limiters: c}
}

// Allow implements domain.RateLimiter.
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}

// LocalReplayGuard is an in-process domain.ReplayGuard. Entries expire after
// the ttl given at construction; the ttl passed to Remember is ignored.
type LocalReplayGuard struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewLocalReplayGuard creates a guard remembering fingerprints for ttl.
func NewLocalReplayGuard(ttl time.Duration) *LocalReplayGuard {
	return &LocalReplayGuard{seen: expirable.NewLRU[string, struct{}](localCacheSize, nil, ttl)}
}

// Remember implements domain.ReplayGuard.
func (g *LocalReplayGuard) Remember(_ context.Context, fingerprint string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen.Contains(fingerprint) {
		return domain.ErrReplayed
	}
	g.seen.Add(fingerprint, struct{}{})
	return nil
}

var (
	_ domain.RateLimiter = (*LocalRateLimiter)(nil)
	_ domain.ReplayGuard = (*LocalReplayGuard)(nil)
)
