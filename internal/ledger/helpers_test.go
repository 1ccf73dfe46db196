package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice   = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000ca401")
	dave    = common.HexToAddress("0x0000000000000000000000000000000000000da7")
	ctx     = context.Background()
	genesis = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	day              = 24 * time.Hour
	resolutionPeriod = 3 * day
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	events []domain.Event
}

func (p *recordingPublisher) PublishEvents(_ context.Context, events []domain.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func amt(n int64) *big.Int { return big.NewInt(n) }

func testParams() domain.Params {
	return domain.Params{
		Owner:                admin,
		Custody:              custody,
		MinStake:             amt(10),
		DefaultDuration:      7 * day,
		ResolutionPeriod:     resolutionPeriod,
		YieldRateBps:         0,
		MaxDurationDays:      365,
		AdminRequiresTimeout: true,
	}
}

type harness struct {
	reg   *Registry
	clock *fakeClock
	pub   *recordingPublisher
}

func newHarness(t *testing.T, mutate ...func(*domain.Params)) *harness {
	t.Helper()
	p := testParams()
	for _, m := range mutate {
		m(&p)
	}
	clock := &fakeClock{now: genesis}
	pub := &recordingPublisher{}
	book := NewBook(map[common.Address]*big.Int{
		alice: amt(10_000),
		bob:   amt(10_000),
		carol: amt(10_000),
		dave:  amt(10_000),
	})
	return &harness{
		reg:   New(p, book, WithClock(clock), WithPublisher(pub)),
		clock: clock,
		pub:   pub,
	}
}

func (h *harness) create(t *testing.T, who common.Address, stake int64, prediction bool) uint64 {
	t.Helper()
	id, err := h.reg.CreateBet(ctx, who, amt(stake), "ETH above 5k by March", 1, prediction)
	require.NoError(t, err)
	return id
}

func (h *harness) join(t *testing.T, id uint64, who common.Address, stake int64, prediction bool) {
	t.Helper()
	require.NoError(t, h.reg.JoinBet(ctx, who, id, amt(stake), prediction))
}

func (h *harness) vote(t *testing.T, id uint64, who common.Address, outcome bool) {
	t.Helper()
	require.NoError(t, h.reg.SubmitResolutionOutcome(ctx, who, id, outcome))
}

// pastWindow moves the clock beyond the resolution deadline of a one-day bet.
func (h *harness) pastWindow() {
	h.clock.Advance(day + resolutionPeriod)
}

func (h *harness) balance(addr common.Address) int64 {
	return h.reg.BalanceOf(addr).Int64()
}

var errStoreDown = errors.New("store unavailable")
