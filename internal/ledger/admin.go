package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// requireAdmin is the single authorization check for every administrator
// operation. Must be called with r.mu held.
func (r *Registry) requireAdmin(caller common.Address) error {
	if !r.params.IsOwner(caller) {
		return domain.ErrNotAdmin
	}
	return nil
}

// AdminFinalizeResolution settles a bet by administrator decision. With
// cancel set every participant gets their principal back; otherwise the
// given outcome is forced and paid out exactly like a consensus settlement.
// Unless AdminRequiresTimeout is disabled the override is only available
// once the bet's resolution window has elapsed.
func (r *Registry) AdminFinalizeResolution(ctx context.Context, caller common.Address, betID uint64, winningOutcome, cancel bool) (domain.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return domain.Settlement{}, err
	}
	current, err := r.lookup(betID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if current.Terminal() {
		return domain.Settlement{}, domain.ErrAlreadyFinalized
	}
	if r.params.AdminRequiresTimeout {
		deadline := current.ResolutionDeadline(r.params.ResolutionPeriod)
		if r.clock.Now().Before(deadline) {
			return domain.Settlement{}, fmt.Errorf("%w: administrator override opens at %s",
				domain.ErrResolutionNotReady, deadline.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	if cancel {
		return r.settle(ctx, "admin_cancel_resolution", caller, current, Refund(current), true)
	}
	return r.settle(ctx, "admin_finalize_resolution", caller, current, Settle(current, winningOutcome, r.params.YieldRateBps), true)
}

// SetYieldRate changes the simulated yield applied by later settlements.
func (r *Registry) SetYieldRate(ctx context.Context, caller common.Address, bps uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if bps > domain.MaxYieldRateBps {
		return fmt.Errorf("%w: yield rate %d bps exceeds %d", domain.ErrInvalidParameter, bps, domain.MaxYieldRateBps)
	}

	now := r.clock.Now()
	next := r.params.Clone()
	next.YieldRateBps = bps
	return r.commit(ctx, domain.Transition{
		Op:         "set_yield_rate",
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Params:     &next,
		Events: []domain.Event{{
			Type: domain.EventYieldRateChanged,
			At:   now,
			Data: domain.YieldRateChanged{Previous: r.params.YieldRateBps, Current: bps},
		}},
	})
}

// SetMinStake changes the minimum stake enforced by later creates and joins.
func (r *Registry) SetMinStake(ctx context.Context, caller common.Address, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: minimum stake must be positive", domain.ErrInvalidParameter)
	}

	now := r.clock.Now()
	next := r.params.Clone()
	next.MinStake = new(big.Int).Set(amount)
	prev := "0"
	if r.params.MinStake != nil {
		prev = r.params.MinStake.String()
	}
	return r.commit(ctx, domain.Transition{
		Op:         "set_min_stake",
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Params:     &next,
		Events: []domain.Event{{
			Type: domain.EventMinStakeChanged,
			At:   now,
			Data: domain.MinStakeChanged{Previous: prev, Current: amount.String()},
		}},
	})
}

// TransferOwnership hands the administrator role to newOwner.
func (r *Registry) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: new owner is the zero address", domain.ErrInvalidParameter)
	}
	return r.setOwner(ctx, caller, newOwner)
}

// RenounceOwnership leaves the registry without an administrator. Bets that
// never reach consensus can then no longer be settled.
func (r *Registry) RenounceOwnership(ctx context.Context, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	return r.setOwner(ctx, caller, common.Address{})
}

func (r *Registry) setOwner(ctx context.Context, caller, owner common.Address) error {
	now := r.clock.Now()
	next := r.params.Clone()
	next.Owner = owner
	return r.commit(ctx, domain.Transition{
		Op:         "transfer_ownership",
		Caller:     caller,
		At:         now,
		BetCounter: r.counter,
		Params:     &next,
		Events: []domain.Event{{
			Type: domain.EventOwnershipTransferred,
			At:   now,
			Data: domain.OwnershipTransferred{PreviousOwner: r.params.Owner, NewOwner: owner},
		}},
	})
}
