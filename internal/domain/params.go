package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxYieldRateBps caps the simulated yield at 100%.
const MaxYieldRateBps = 10_000

// Params are the registry-wide parameters. They are passed by value into
// every settlement computation so a finalization can be reasoned about with
// fixed inputs.
type Params struct {
	Owner            common.Address `json:"owner"`
	Custody          common.Address `json:"custody"`
	MinStake         *big.Int       `json:"min_stake"`
	DefaultDuration  time.Duration  `json:"default_duration"`
	ResolutionPeriod time.Duration  `json:"resolution_period"`
	YieldRateBps     uint64         `json:"yield_rate_bps"`
	MaxDurationDays  uint64         `json:"max_duration_days"`

	// AdminRequiresTimeout gates the administrator override until the
	// resolution window of the bet has elapsed.
	AdminRequiresTimeout bool `json:"admin_requires_timeout"`
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	out := p
	if p.MinStake != nil {
		out.MinStake = new(big.Int).Set(p.MinStake)
	}
	return out
}

// IsOwner reports whether addr is the registered administrator. A renounced
// registry (zero owner) has no administrator.
func (p Params) IsOwner(addr common.Address) bool {
	return p.Owner != (common.Address{}) && p.Owner == addr
}
