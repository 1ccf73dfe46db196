package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/visioninhope/BetM3/internal/blob/s3"
	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/ledger"
)

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice   = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

const day = 24 * time.Hour

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (a *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, domain.AuditEntry{ID: int64(len(a.entries) + 1), Event: event, Detail: detail})
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEntry(nil), a.entries...), nil
}

func (a *memAudit) events() []string {
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Event)
	}
	return out
}

// memEvents records committed events as an event store would.
type memEvents struct {
	mu     sync.Mutex
	stored []domain.StoredEvent
}

func (m *memEvents) PublishEvents(_ context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.stored = append(m.stored, domain.StoredEvent{ID: int64(len(m.stored) + 1), Event: ev})
	}
	return nil
}

func (m *memEvents) ListByBet(_ context.Context, betID uint64, _ domain.ListOpts) ([]domain.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredEvent
	for _, e := range m.stored {
		if e.BetID == betID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) ListRecent(context.Context, domain.ListOpts) ([]domain.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StoredEvent(nil), m.stored...), nil
}

type fixture struct {
	svc    *BetService
	clock  *stepClock
	audit  *memAudit
	events *memEvents
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &stepClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	audit := &memAudit{}
	events := &memEvents{}
	params := domain.Params{
		Owner:                admin,
		Custody:              custody,
		MinStake:             big.NewInt(10),
		DefaultDuration:      7 * day,
		ResolutionPeriod:     3 * day,
		YieldRateBps:         500,
		MaxDurationDays:      365,
		AdminRequiresTimeout: true,
	}
	book := ledger.NewBook(map[common.Address]*big.Int{
		alice: big.NewInt(1_000),
		bob:   big.NewInt(1_000),
	})
	reg := ledger.New(params, book,
		ledger.WithClock(clock),
		ledger.WithPublisher(events),
		ledger.WithLogger(quietLogger()),
	)
	return &fixture{
		svc:    NewBetService(reg, events, audit, nil, quietLogger()),
		clock:  clock,
		audit:  audit,
		events: events,
	}
}

func (f *fixture) openBet(t *testing.T) uint64 {
	t.Helper()
	d, err := f.svc.CreateBet(context.Background(), alice, CreateBetRequest{
		Stake:             big.NewInt(100),
		Condition:         "It rains in Lisbon on Friday",
		DurationDays:      1,
		CreatorPrediction: true,
	})
	require.NoError(t, err)
	_, err = f.svc.JoinBet(context.Background(), bob, d.ID, big.NewInt(100), false)
	require.NoError(t, err)
	return d.ID
}

func TestBetServiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openBet(t)

	d, err := f.svc.BetDetails(id)
	require.NoError(t, err)
	assert.Equal(t, 2, d.ParticipantCount)
	assert.Equal(t, domain.PhaseActive, d.Phase)

	f.clock.Advance(day)
	_, err = f.svc.SubmitVote(ctx, alice, id, true)
	require.NoError(t, err)
	_, err = f.svc.SubmitVote(ctx, bob, id, true)
	require.NoError(t, err)

	st, err := f.svc.Finalize(ctx, bob, id)
	require.NoError(t, err)
	assert.Equal(t, "210", st.Distributed().String())
	assert.Equal(t, "1110", f.svc.BalanceOf(alice).String())

	evs, err := f.svc.BetEvents(ctx, id, domain.ListOpts{})
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	assert.Equal(t, domain.EventBetCreated, evs[0].Type)
	assert.Equal(t, domain.EventBetResolved, evs[len(evs)-1].Type)

	assert.Empty(t, f.audit.entries, "consensus finalization is not an admin action")
}

func TestBetServicePassesErrorsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openBet(t)

	_, err := f.svc.JoinBet(ctx, bob, id, big.NewInt(100), true)
	require.ErrorIs(t, err, domain.ErrAlreadyParticipant)

	_, err = f.svc.Finalize(ctx, alice, id)
	require.ErrorIs(t, err, domain.ErrNotParticipant)
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(domain.ErrNotParticipant))

	_, err = f.svc.BetEvents(ctx, 99, domain.ListOpts{})
	require.ErrorIs(t, err, domain.ErrBetNotFound)
}

func TestBetServiceAdminActionsAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openBet(t)

	require.NoError(t, f.svc.SetYieldRate(ctx, admin, 1_000))
	require.NoError(t, f.svc.SetMinStake(ctx, admin, big.NewInt(20)))
	require.ErrorIs(t, f.svc.SetYieldRate(ctx, alice, 1), domain.ErrNotAdmin)

	f.clock.Advance(4 * day)
	st, err := f.svc.AdminFinalize(ctx, admin, id, false, true)
	require.NoError(t, err)
	assert.True(t, st.Cancelled)
	assert.Equal(t, "1000", f.svc.BalanceOf(alice).String())

	require.NoError(t, f.svc.TransferOwnership(ctx, admin, alice))
	require.NoError(t, f.svc.RenounceOwnership(ctx, alice))

	assert.Equal(t, []string{
		"admin.set_yield_rate",
		"admin.set_min_stake",
		"admin.finalize",
		"admin.transfer_ownership",
		"admin.renounce_ownership",
	}, f.audit.events())

	info := f.svc.Info()
	assert.Equal(t, common.Address{}, info.Owner)
	assert.Equal(t, uint64(1_000), info.YieldRateBps)
	assert.Equal(t, "20", info.MinStake.String())
	assert.Equal(t, uint64(1), info.BetCounter)
}

func TestBetServiceWithoutEventLog(t *testing.T) {
	f := newFixture(t)
	svc := NewBetService(f.svc.Registry(), nil, nil, nil, quietLogger())
	_, err := svc.RecentEvents(context.Background(), domain.ListOpts{})
	require.ErrorIs(t, err, ErrNoEventLog)
	_, err = svc.AuditLog(context.Background(), domain.ListOpts{})
	require.ErrorIs(t, err, ErrNoEventLog)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishEvents(context.Context, []domain.Event) error {
	p.calls++
	return errors.New("down")
}

func TestFanoutAttemptsEveryPublisher(t *testing.T) {
	bad := &failingPublisher{}
	good := &memEvents{}
	f := Fanout{bad, nil, good}

	err := f.PublishEvents(context.Background(), []domain.Event{{Type: domain.EventBetJoined, BetID: 1}})
	require.Error(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Len(t, good.stored, 1)
}

type memIndex struct {
	pending  []uint64
	archived []uint64
}

func (m *memIndex) ListUnarchived(_ context.Context, limit int) ([]uint64, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *memIndex) MarkArchived(_ context.Context, id uint64) error {
	m.archived = append(m.archived, id)
	for i, p := range m.pending {
		if p == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return nil
}

type memArchiver struct {
	bets      []s3blob.BetArchive
	snapshots int
	err       error
}

func (m *memArchiver) ArchiveBet(_ context.Context, rec s3blob.BetArchive) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.bets = append(m.bets, rec)
	return true, nil
}

func (m *memArchiver) ArchiveSnapshot(_ context.Context, snap *domain.Snapshot) (string, error) {
	m.snapshots++
	return "snapshots/1.json", nil
}

func TestArchiveSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openBet(t)
	f.clock.Advance(4 * day)
	_, err := f.svc.AdminFinalize(ctx, admin, id, true, false)
	require.NoError(t, err)

	idx := &memIndex{pending: []uint64{id}}
	arch := &memArchiver{}
	svc := NewArchiveService(f.svc.Registry(), idx, f.events, arch, time.Minute, 0, quietLogger())

	n, err := svc.ArchiveSettled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{id}, idx.archived)
	require.Len(t, arch.bets, 1)
	assert.True(t, arch.bets[0].Details.ResolutionFinalized)
	assert.NotEmpty(t, arch.bets[0].Events)

	n, err = svc.ArchiveSettled(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	path, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/1.json", path)
}

func TestArchiveSettledKeepsFailedBetsPending(t *testing.T) {
	f := newFixture(t)
	id := f.openBet(t)
	idx := &memIndex{pending: []uint64{id}}
	svc := NewArchiveService(f.svc.Registry(), idx, f.events, &memArchiver{err: errors.New("s3 down")}, 0, 0, quietLogger())

	_, err := svc.ArchiveSettled(context.Background())
	require.Error(t, err)
	assert.Empty(t, idx.archived)
	assert.Equal(t, []uint64{id}, idx.pending)
}

type recordingAlerter struct{ ids []uint64 }

func (r *recordingAlerter) AwaitingAdmin(_ context.Context, d domain.BetDetails) error {
	r.ids = append(r.ids, d.ID)
	return nil
}

func TestDeadlineWatcherAlertsOnce(t *testing.T) {
	f := newFixture(t)
	id := f.openBet(t)
	alerter := &recordingAlerter{}
	w := NewDeadlineWatcher(f.svc.Registry(), alerter, time.Second, quietLogger())

	assert.Empty(t, w.Scan(context.Background()))

	f.clock.Advance(4 * day)
	assert.Equal(t, []uint64{id}, w.Scan(context.Background()))
	assert.Empty(t, w.Scan(context.Background()))
	assert.Equal(t, []uint64{id}, alerter.ids)

	_, err := f.svc.AdminFinalize(context.Background(), admin, id, true, false)
	require.NoError(t, err)
	assert.Empty(t, w.Scan(context.Background()))
}

type countingRecorder struct {
	ops         map[string]int
	settlements int
}

func (c *countingRecorder) ObserveOp(op string, err error) {
	key := op + ":ok"
	if err != nil {
		key = op + ":" + string(domain.KindOf(err))
	}
	c.ops[key]++
}

func (c *countingRecorder) ObserveSettlement(domain.Settlement, bool) { c.settlements++ }

func TestBetServiceRecordsOutcomes(t *testing.T) {
	f := newFixture(t)
	rec := &countingRecorder{ops: map[string]int{}}
	svc := NewBetService(f.svc.Registry(), nil, nil, rec, quietLogger())
	ctx := context.Background()

	d, err := svc.CreateBet(ctx, alice, CreateBetRequest{Stake: big.NewInt(50), Condition: "x", DurationDays: 1, CreatorPrediction: true})
	require.NoError(t, err)
	_, err = svc.JoinBet(ctx, alice, d.ID, big.NewInt(50), true)
	require.Error(t, err)
	_, err = svc.SubmitVote(ctx, alice, d.ID, true)
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, alice, d.ID)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"create_bet:ok":       1,
		"join_bet:validation": 1,
		"submit_vote:ok":      1,
		"finalize:ok":         1,
	}, rec.ops)
	assert.Equal(t, 1, rec.settlements)
}
