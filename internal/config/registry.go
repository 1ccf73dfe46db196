package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// Params converts the registry section into ledger parameters. Call Validate
// first; Params only reports the first problem it meets.
func (r RegistryConfig) Params() (domain.Params, error) {
	minStake, ok := new(big.Int).SetString(r.MinStake, 10)
	if !ok {
		return domain.Params{}, fmt.Errorf("config: registry.min_stake %q is not an integer", r.MinStake)
	}
	if r.YieldRateBps < 0 {
		return domain.Params{}, fmt.Errorf("config: registry.yield_rate_bps must not be negative")
	}
	maxDays := r.MaxDurationDays
	if maxDays < 0 {
		maxDays = 0
	}
	return domain.Params{
		Owner:                common.HexToAddress(r.Admin),
		Custody:              common.HexToAddress(r.CustodyAddress),
		MinStake:             minStake,
		DefaultDuration:      time.Duration(r.DefaultDurationDays) * 24 * time.Hour,
		ResolutionPeriod:     r.ResolutionPeriod.Duration,
		YieldRateBps:         uint64(r.YieldRateBps),
		MaxDurationDays:      uint64(maxDays),
		AdminRequiresTimeout: r.AdminRequiresTimeout,
	}, nil
}

// GenesisBalances parses the genesis balance table.
func (r RegistryConfig) GenesisBalances() (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(r.Genesis))
	for addr, bal := range r.Genesis {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("config: genesis address %q is not a hex address", addr)
		}
		v, ok := new(big.Int).SetString(bal, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("config: genesis balance %q for %s is invalid", bal, addr)
		}
		out[common.HexToAddress(addr)] = v
	}
	return out, nil
}
