// Package ledger implements the bet registry: the authoritative state of every
// wager, the escrow book it draws on, and the lifecycle operations that move
// bets from creation to a single, final distribution.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// maxDurationDays is the longest duration a time.Duration can hold.
const maxDurationDays = uint64(math.MaxInt64 / int64(24*time.Hour))

// Clock supplies the executor's notion of the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(c Clock) Option { return func(r *Registry) { r.clock = c } }

// WithCommitter makes every transition durable before it is applied.
func WithCommitter(c domain.Committer) Option { return func(r *Registry) { r.committer = c } }

// WithPublisher fans committed events out.
func WithPublisher(p domain.EventPublisher) Option { return func(r *Registry) { r.publisher = p } }

// WithLogger sets the logger used for post-commit failures.
func WithLogger(l *slog.Logger) Option { return func(r *Registry) { r.logger = l } }

// Registry holds every bet and applies operations one at a time. Each
// operation either commits completely or leaves the registry untouched.
type Registry struct {
	mu        sync.Mutex
	params    domain.Params
	counter   uint64
	bets      map[uint64]*domain.Bet
	book      *Book
	clock     Clock
	committer domain.Committer
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// New creates an empty registry.
func New(params domain.Params, book *Book, opts ...Option) *Registry {
	if book == nil {
		book = NewBook(nil)
	}
	r := &Registry{
		params: params.Clone(),
		bets:   make(map[uint64]*domain.Bet),
		book:   book,
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "ledger"))
	return r
}

// Restore rebuilds a registry from a snapshot.
func Restore(snap *domain.Snapshot, opts ...Option) *Registry {
	r := New(snap.Params, NewBook(snap.Balances), opts...)
	r.counter = snap.BetCounter
	for _, b := range snap.Bets {
		r.bets[b.ID] = b.Clone()
	}
	return r
}

// CreateBet opens a new bet with the caller as its first participant and
// escrows stake from the caller. durationDays of zero selects the default
// duration.
func (r *Registry) CreateBet(ctx context.Context, caller common.Address, stake *big.Int, condition string, durationDays uint64, creatorPrediction bool) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(condition) == "" {
		return 0, domain.ErrInvalidCondition
	}
	if err := r.checkStake(stake); err != nil {
		return 0, err
	}
	if err := r.checkStaker(caller); err != nil {
		return 0, err
	}
	duration := r.params.DefaultDuration
	if durationDays > 0 {
		limit := maxDurationDays
		if r.params.MaxDurationDays > 0 && r.params.MaxDurationDays < limit {
			limit = r.params.MaxDurationDays
		}
		if durationDays > limit {
			return 0, fmt.Errorf("%w: %d days exceeds %d", domain.ErrInvalidDuration, durationDays, limit)
		}
		duration = time.Duration(durationDays) * 24 * time.Hour
	}

	now := r.clock.Now()
	id := r.counter + 1
	bet := &domain.Bet{
		ID:                id,
		Creator:           caller,
		Condition:         condition,
		CreatedAt:         now,
		Expiration:        now.Add(duration),
		CreatorPrediction: creatorPrediction,
		TotalStakeTrue:    new(big.Int),
		TotalStakeFalse:   new(big.Int),
		Votes:             make(map[common.Address]bool),
	}
	addParticipant(bet, caller, stake, creatorPrediction, now)

	tr := domain.Transition{
		Op:         "create_bet",
		Caller:     caller,
		At:         now,
		BetCounter: id,
		Bet:        bet,
		Transfers:  []domain.Transfer{r.escrow(caller, stake)},
		Events: []domain.Event{{
			Type:  domain.EventBetCreated,
			BetID: id,
			At:    now,
			Data: domain.BetCreated{
				ID:                id,
				Creator:           caller,
				Condition:         condition,
				Expiration:        bet.Expiration,
				CreatorPrediction: creatorPrediction,
				Stake:             stake.String(),
			},
		}},
	}
	if err := r.commit(ctx, tr); err != nil {
		return 0, err
	}
	return id, nil
}

// JoinBet adds the caller on the chosen side and escrows stake.
func (r *Registry) JoinBet(ctx context.Context, caller common.Address, betID uint64, stake *big.Int, prediction bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.lookup(betID)
	if err != nil {
		return err
	}
	now := r.clock.Now()
	if !now.Before(current.Expiration) {
		return domain.ErrBetExpired
	}
	if current.Terminal() {
		return domain.ErrAlreadyFinalized
	}
	if current.IsParticipant(caller) {
		return domain.ErrAlreadyParticipant
	}
	if err := r.checkStake(stake); err != nil {
		return err
	}
	if err := r.checkStaker(caller); err != nil {
		return err
	}

	bet := current.Clone()
	addParticipant(bet, caller, stake, prediction, now)

	return r.commit(ctx, domain.Transition{
		Op:         "join_bet",
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Bet:        bet,
		Transfers:  []domain.Transfer{r.escrow(caller, stake)},
		Events: []domain.Event{{
			Type:  domain.EventBetJoined,
			BetID: betID,
			At:    now,
			Data: domain.BetJoined{
				BetID:       betID,
				Participant: caller,
				Prediction:  prediction,
				Stake:       stake.String(),
			},
		}},
	})
}

// SubmitResolutionOutcome records or overwrites the caller's vote. Votes are
// accepted at any time until the bet is settled, including before expiry.
func (r *Registry) SubmitResolutionOutcome(ctx context.Context, caller common.Address, betID uint64, outcome bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.lookup(betID)
	if err != nil {
		return err
	}
	p, ok := current.Participant(caller)
	if !ok {
		return domain.ErrNotParticipant
	}
	if current.Terminal() || current.Resolved {
		return domain.ErrAlreadyFinalized
	}

	now := r.clock.Now()
	bet := current.Clone()
	bet.Votes[caller] = outcome

	return r.commit(ctx, domain.Transition{
		Op:         "submit_resolution_outcome",
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Bet:        bet,
		Events: []domain.Event{{
			Type:  domain.EventResolutionVote,
			BetID: betID,
			At:    now,
			Data: domain.ResolutionVoteSubmitted{
				BetID:       betID,
				Participant: caller,
				Outcome:     outcome,
				VoteWeight:  p.Stake.String(),
			},
		}},
	})
}

// FinalizeResolution settles a bet on which every participant has cast the
// same vote. Without consensus it fails with ErrResolutionNotReady, also after
// the resolution window has elapsed: such a bet waits for the administrator
// and is never resolved by default.
func (r *Registry) FinalizeResolution(ctx context.Context, caller common.Address, betID uint64) (domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.lookup(betID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if !current.IsParticipant(caller) {
		return domain.Settlement{}, domain.ErrNotParticipant
	}
	if current.Terminal() {
		return domain.Settlement{}, domain.ErrAlreadyFinalized
	}

	outcome, ok := current.Consensus()
	if !ok {
		now := r.clock.Now()
		if now.Before(current.ResolutionDeadline(r.params.ResolutionPeriod)) {
			return domain.Settlement{}, fmt.Errorf("%w: %d of %d participants agree",
				domain.ErrResolutionNotReady, agreeing(current), len(current.Participants))
		}
		return domain.Settlement{}, fmt.Errorf("%w: resolution window elapsed without consensus, awaiting administrator",
			domain.ErrResolutionNotReady)
	}

	return r.settle(ctx, "finalize_resolution", caller, current, Settle(current, outcome, r.params.YieldRateBps), false)
}

// Bet returns a copy of the bet record.
func (r *Registry) Bet(betID uint64) (*domain.Bet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.lookup(betID)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// Snapshot exports the full registry state.
func (r *Registry) Snapshot() *domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint64, 0, len(r.bets))
	for id := range r.bets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	bets := make([]*domain.Bet, 0, len(ids))
	for _, id := range ids {
		bets = append(bets, r.bets[id].Clone())
	}
	return &domain.Snapshot{
		Params:     r.params.Clone(),
		BetCounter: r.counter,
		Bets:       bets,
		Balances:   r.book.Balances(),
		TakenAt:    r.clock.Now(),
	}
}

// settle finalizes bet with the computed settlement. forced marks the
// administrator path.
func (r *Registry) settle(ctx context.Context, op string, caller common.Address, current *domain.Bet, s domain.Settlement, forced bool) (domain.Settlement, error) {
	now := r.clock.Now()
	bet := current.Clone()
	bet.ResolutionFinalized = true
	bet.FinalizedAt = &now

	var ev domain.Event
	if s.Cancelled {
		bet.Cancelled = true
		ev = domain.Event{
			Type:  domain.EventBetResolutionCancelled,
			BetID: bet.ID,
			At:    now,
			Data:  domain.BetResolutionCancelled{BetID: bet.ID},
		}
	} else {
		bet.Resolved = true
		bet.WinningOutcome = s.WinningOutcome
		ev = domain.Event{
			Type:  domain.EventBetResolved,
			BetID: bet.ID,
			At:    now,
			Data: domain.BetResolved{
				BetID:          bet.ID,
				WinningOutcome: s.WinningOutcome,
				SimulatedYield: s.SimulatedYield.String(),
				Forced:         forced,
			},
		}
	}

	err := r.commit(ctx, domain.Transition{
		Op:         op,
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Bet:        bet,
		Transfers:  settlementTransfers(s, r.params.Custody),
		Events:     []domain.Event{ev},
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	return s, nil
}

// commit checks transfers, makes the transition durable and only then
// applies it. Must be called with r.mu held.
func (r *Registry) commit(ctx context.Context, tr domain.Transition) error {
	if err := r.book.Check(tr.Transfers); err != nil {
		return err
	}
	if r.committer != nil {
		if err := r.committer.Commit(ctx, tr); err != nil {
			return fmt.Errorf("ledger: commit %s: %w", tr.Op, err)
		}
	}

	r.book.Apply(tr.Transfers)
	if tr.Bet != nil {
		r.bets[tr.Bet.ID] = tr.Bet
	}
	if tr.Params != nil {
		r.params = tr.Params.Clone()
	}
	r.counter = tr.BetCounter

	if r.publisher != nil && len(tr.Events) > 0 {
		if err := r.publisher.PublishEvents(ctx, tr.Events); err != nil {
			r.logger.WarnContext(ctx, "ledger: publish events failed",
				slog.String("op", tr.Op),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (r *Registry) lookup(betID uint64) (*domain.Bet, error) {
	b, ok := r.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrBetNotFound, betID)
	}
	return b, nil
}

// checkStake enforces the minimum stake as configured at call time.
func (r *Registry) checkStake(stake *big.Int) error {
	if stake == nil || stake.Sign() <= 0 {
		return domain.ErrInsufficientStake
	}
	if r.params.MinStake != nil && stake.Cmp(r.params.MinStake) < 0 {
		return fmt.Errorf("%w: %s < %s", domain.ErrInsufficientStake, stake.String(), r.params.MinStake.String())
	}
	return nil
}

// checkStaker rejects the accounts that back escrow and yield. A stake from
// either would be recorded without any tokens leaving the caller's hands.
func (r *Registry) checkStaker(caller common.Address) error {
	if caller == r.params.Custody || caller == YieldSource {
		return fmt.Errorf("%w: %s cannot stake", domain.ErrTransferFailed, caller.Hex())
	}
	return nil
}

func (r *Registry) escrow(from common.Address, stake *big.Int) domain.Transfer {
	return domain.Transfer{From: from, To: r.params.Custody, Amount: new(big.Int).Set(stake)}
}

func addParticipant(bet *domain.Bet, addr common.Address, stake *big.Int, prediction bool, now time.Time) {
	bet.Participants = append(bet.Participants, domain.Participant{
		Address:    addr,
		Stake:      new(big.Int).Set(stake),
		Prediction: prediction,
		JoinedAt:   now,
	})
	side := bet.TotalStakeFalse
	if prediction {
		side = bet.TotalStakeTrue
	}
	side.Add(side, stake)
}

// agreeing counts votes matching the most common submitted outcome.
func agreeing(b *domain.Bet) int {
	var yes, no int
	for _, v := range b.Votes {
		if v {
			yes++
		} else {
			no++
		}
	}
	return max(yes, no)
}
