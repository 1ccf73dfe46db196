package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// YieldSource is the account simulated yield is minted from. Its balance
// goes negative by the total yield ever paid out.
var YieldSource = common.Address{}

// Book is the token balance book the registry escrows against. It is not
// safe for concurrent use; the Registry serialises access.
type Book struct {
	balances map[common.Address]*big.Int
}

// NewBook creates a Book seeded with the given balances.
func NewBook(genesis map[common.Address]*big.Int) *Book {
	b := &Book{balances: make(map[common.Address]*big.Int, len(genesis))}
	for addr, amt := range genesis {
		if amt == nil {
			continue
		}
		b.balances[addr] = new(big.Int).Set(amt)
	}
	return b
}

// BalanceOf returns a copy of addr's balance.
func (b *Book) BalanceOf(addr common.Address) *big.Int {
	if bal, ok := b.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Check verifies that every transfer in order can be applied without any
// account other than YieldSource going negative. A transfer from an account
// to itself is rejected. It does not modify b.
func (b *Book) Check(transfers []domain.Transfer) error {
	pending := make(map[common.Address]*big.Int)
	balance := func(addr common.Address) *big.Int {
		if v, ok := pending[addr]; ok {
			return v
		}
		v := b.BalanceOf(addr)
		pending[addr] = v
		return v
	}

	for _, t := range transfers {
		if t.Amount == nil || t.Amount.Sign() < 0 {
			return fmt.Errorf("%w: invalid amount", domain.ErrTransferFailed)
		}
		if t.From == t.To {
			return fmt.Errorf("%w: %s transfers to itself", domain.ErrTransferFailed, t.From.Hex())
		}
		from := balance(t.From)
		if t.From != YieldSource && from.Cmp(t.Amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s",
				domain.ErrTransferFailed, t.From.Hex(), from.String(), t.Amount.String())
		}
		from.Sub(from, t.Amount)
		to := balance(t.To)
		to.Add(to, t.Amount)
	}
	return nil
}

// Apply performs transfers. Callers must Check first.
func (b *Book) Apply(transfers []domain.Transfer) {
	for _, t := range transfers {
		b.add(t.From, new(big.Int).Neg(t.Amount))
		b.add(t.To, t.Amount)
	}
}

func (b *Book) add(addr common.Address, delta *big.Int) {
	bal, ok := b.balances[addr]
	if !ok {
		bal = new(big.Int)
		b.balances[addr] = bal
	}
	bal.Add(bal, delta)
}

// Balances returns a deep copy of every non-zero balance.
func (b *Book) Balances() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(b.balances))
	for addr, bal := range b.balances {
		if bal.Sign() == 0 {
			continue
		}
		out[addr] = new(big.Int).Set(bal)
	}
	return out
}
