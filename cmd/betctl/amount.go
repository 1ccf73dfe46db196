package main

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// parseAmount converts a human token amount such as "12.5" into base units
// with the given number of decimals. Amounts finer than one base unit are
// rejected rather than rounded.
func parseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", s, decimals)
	}
	return scaled.BigInt(), nil
}

// formatAmount renders base units as a human token amount.
func formatAmount(base string, decimals int32) string {
	d, err := decimal.NewFromString(base)
	if err != nil {
		return base
	}
	return d.Shift(-decimals).String()
}
