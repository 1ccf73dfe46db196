package ledger

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// GetBetDetails projects the current state of a bet.
func (r *Registry) GetBetDetails(betID uint64) (domain.BetDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.lookup(betID)
	if err != nil {
		return domain.BetDetails{}, err
	}
	return b.Details(r.clock.Now(), r.params.ResolutionPeriod), nil
}

// GetParticipantStake returns the stake of participant, zero when the
// address never joined.
func (r *Registry) GetParticipantStake(betID uint64, participant common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.lookup(betID)
	if err != nil {
		return nil, err
	}
	if p, ok := b.Participant(participant); ok {
		return new(big.Int).Set(p.Stake), nil
	}
	return new(big.Int), nil
}

// Participants lists the participants of a bet in join order.
func (r *Registry) Participants(betID uint64) ([]domain.Participant, error) {
	b, err := r.Bet(betID)
	if err != nil {
		return nil, err
	}
	return b.Participants, nil
}

// Votes returns the submitted votes of a bet.
func (r *Registry) Votes(betID uint64) (map[common.Address]bool, error) {
	b, err := r.Bet(betID)
	if err != nil {
		return nil, err
	}
	return b.Votes, nil
}

// ListBets projects bets in id order.
func (r *Registry) ListBets(opts domain.ListOpts) []domain.BetDetails {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uint64, 0, len(r.bets))
	for id := range r.bets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if opts.Offset > 0 {
		if opts.Offset >= len(ids) {
			return []domain.BetDetails{}
		}
		ids = ids[opts.Offset:]
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	now := r.clock.Now()
	out := make([]domain.BetDetails, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.bets[id].Details(now, r.params.ResolutionPeriod))
	}
	return out
}

// Params returns the current registry parameters.
func (r *Registry) Params() domain.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params.Clone()
}

// BetCounter is the number of bets ever created; it is also the id of the
// most recent bet.
func (r *Registry) BetCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// BalanceOf returns the token balance of addr.
func (r *Registry) BalanceOf(addr common.Address) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.book.BalanceOf(addr)
}

// Escrowed returns the custody balance currently held for a bet: the sum of
// its stakes until settlement, zero afterwards.
func (r *Registry) Escrowed(betID uint64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.lookup(betID)
	if err != nil {
		return nil, err
	}
	if b.Terminal() {
		return new(big.Int), nil
	}
	return b.TotalStake(), nil
}
