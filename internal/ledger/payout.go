package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

var bpsDenominator = big.NewInt(domain.MaxYieldRateBps)

// SimulatedYield is floor(principal * bps / 10000).
func SimulatedYield(principal *big.Int, bps uint64) *big.Int {
	y := new(big.Int).Mul(principal, new(big.Int).SetUint64(bps))
	return y.Quo(y, bpsDenominator)
}

// Settle computes the payout of bet for the decided outcome. The whole pool
// (principal of both sides plus simulated yield) goes to the winning side,
// pro rata by stake. Integer division dust is added to the earliest-joined
// winner, so the payouts always sum to the pool exactly. When nobody
// predicted the outcome every participant gets their principal back and no
// yield is paid.
func Settle(bet *domain.Bet, outcome bool, yieldRateBps uint64) domain.Settlement {
	principal := bet.TotalStake()
	winTotal := bet.SideTotal(outcome)

	if winTotal.Sign() == 0 {
		s := Refund(bet)
		s.Cancelled = false
		s.WinningOutcome = outcome
		return s
	}

	yield := SimulatedYield(principal, yieldRateBps)
	pool := new(big.Int).Add(principal, yield)

	s := domain.Settlement{
		BetID:          bet.ID,
		WinningOutcome: outcome,
		Principal:      principal,
		SimulatedYield: yield,
		Payouts:        make([]domain.Payout, 0, len(bet.Participants)),
	}

	paid := new(big.Int)
	first := -1
	for _, p := range bet.Participants {
		amount := new(big.Int)
		if p.Prediction == outcome {
			amount.Mul(pool, p.Stake)
			amount.Quo(amount, winTotal)
			paid.Add(paid, amount)
			if first < 0 {
				first = len(s.Payouts)
			}
		}
		s.Payouts = append(s.Payouts, domain.Payout{
			Address:   p.Address,
			Principal: new(big.Int).Set(p.Stake),
			Amount:    amount,
		})
	}

	if dust := new(big.Int).Sub(pool, paid); dust.Sign() > 0 {
		s.Payouts[first].Amount.Add(s.Payouts[first].Amount, dust)
	}
	return s
}

// Refund returns every participant's exact principal.
func Refund(bet *domain.Bet) domain.Settlement {
	s := domain.Settlement{
		BetID:          bet.ID,
		Cancelled:      true,
		Principal:      bet.TotalStake(),
		SimulatedYield: new(big.Int),
		Payouts:        make([]domain.Payout, 0, len(bet.Participants)),
	}
	for _, p := range bet.Participants {
		s.Payouts = append(s.Payouts, domain.Payout{
			Address:   p.Address,
			Principal: new(big.Int).Set(p.Stake),
			Amount:    new(big.Int).Set(p.Stake),
		})
	}
	return s
}

// settlementTransfers releases a settlement from custody. Yield is minted
// into custody first so that custody never pays more than it holds.
func settlementTransfers(s domain.Settlement, custody common.Address) []domain.Transfer {
	var out []domain.Transfer
	if s.SimulatedYield != nil && s.SimulatedYield.Sign() > 0 {
		out = append(out, domain.Transfer{
			From:   YieldSource,
			To:     custody,
			Amount: new(big.Int).Set(s.SimulatedYield),
		})
	}
	for _, p := range s.Payouts {
		if p.Amount.Sign() == 0 {
			continue
		}
		out = append(out, domain.Transfer{
			From:   custody,
			To:     p.Address,
			Amount: new(big.Int).Set(p.Amount),
		})
	}
	return out
}
