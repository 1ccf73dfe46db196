package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Payout is the amount released to one participant at finalization.
type Payout struct {
	Address   common.Address `json:"address"`
	Principal *big.Int       `json:"principal"`
	Amount    *big.Int       `json:"amount"`
}

// Settlement describes the single distribution of a bet's custody.
type Settlement struct {
	BetID          uint64   `json:"bet_id"`
	Cancelled      bool     `json:"cancelled"`
	WinningOutcome bool     `json:"winning_outcome"`
	Principal      *big.Int `json:"principal"`
	SimulatedYield *big.Int `json:"simulated_yield"`
	Payouts        []Payout `json:"payouts"`
}

// Distributed sums every payout.
func (s Settlement) Distributed() *big.Int {
	total := new(big.Int)
	for _, p := range s.Payouts {
		total.Add(total, p.Amount)
	}
	return total
}

// Transfer moves Amount from one account to another in the token book. A
// transfer from the zero address mints simulated yield.
type Transfer struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// Transition is everything one operation changes. It is handed to a
// Committer before the in-memory registry is updated.
type Transition struct {
	Op         string         `json:"op"`
	Caller     common.Address `json:"caller"`
	At         time.Time      `json:"at"`
	BetCounter uint64         `json:"bet_counter"`
	Bet        *Bet           `json:"bet,omitempty"`
	Params     *Params        `json:"params,omitempty"`
	Transfers  []Transfer     `json:"transfers,omitempty"`
	Events     []Event        `json:"events"`
}

// Committer durably records a transition. An error aborts the operation and
// leaves the registry unchanged.
type Committer interface {
	Commit(ctx context.Context, tr Transition) error
}

// CommitterFunc adapts a function to Committer.
type CommitterFunc func(ctx context.Context, tr Transition) error

// Commit calls f.
func (f CommitterFunc) Commit(ctx context.Context, tr Transition) error { return f(ctx, tr) }

// EventPublisher fans committed events out to subscribers. Publishing is best
// effort and happens after commit.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []Event) error
}

// Snapshot is the full registry state used to restore an engine at startup
// and to export archives.
type Snapshot struct {
	Params     Params                      `json:"params"`
	BetCounter uint64                      `json:"bet_counter"`
	Bets       []*Bet                      `json:"bets"`
	Balances   map[common.Address]*big.Int `json:"balances"`
	TakenAt    time.Time                   `json:"taken_at"`
}
