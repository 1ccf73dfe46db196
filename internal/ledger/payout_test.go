package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

type stakeSpec struct {
	addr       common.Address
	stake      int64
	prediction bool
}

func betWith(stakes ...stakeSpec) *domain.Bet {
	b := &domain.Bet{
		ID:              7,
		TotalStakeTrue:  new(big.Int),
		TotalStakeFalse: new(big.Int),
		Votes:           make(map[common.Address]bool),
	}
	for _, s := range stakes {
		addParticipant(b, s.addr, amt(s.stake), s.prediction, genesis)
	}
	return b
}

func payoutOf(t *testing.T, s domain.Settlement, addr common.Address) int64 {
	t.Helper()
	for _, p := range s.Payouts {
		if p.Address == addr {
			return p.Amount.Int64()
		}
	}
	t.Fatalf("no payout for %s", addr.Hex())
	return 0
}

func TestSimulatedYield(t *testing.T) {
	tests := []struct {
		principal int64
		bps       uint64
		want      int64
	}{
		{200, 1_000, 20},
		{200, 0, 0},
		{999, 1, 0},
		{10_000, 1, 1},
		{123, 10_000, 123},
		{1_999, 500, 99},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SimulatedYield(amt(tt.principal), tt.bps).Int64(),
			"principal=%d bps=%d", tt.principal, tt.bps)
	}
}

func TestSettleProRata(t *testing.T) {
	bet := betWith(
		stakeSpec{alice, 60, true},
		stakeSpec{bob, 40, true},
		stakeSpec{carol, 100, false},
	)

	s := Settle(bet, true, 1_000)
	assert.False(t, s.Cancelled)
	assert.True(t, s.WinningOutcome)
	assert.Equal(t, int64(200), s.Principal.Int64())
	assert.Equal(t, int64(20), s.SimulatedYield.Int64())
	assert.Equal(t, int64(132), payoutOf(t, s, alice))
	assert.Equal(t, int64(88), payoutOf(t, s, bob))
	assert.Equal(t, int64(0), payoutOf(t, s, carol))
	assert.Equal(t, int64(220), s.Distributed().Int64())
}

func TestSettleAssignsDustToEarliestWinner(t *testing.T) {
	bet := betWith(
		stakeSpec{alice, 10, true},
		stakeSpec{dave, 1, false},
		stakeSpec{bob, 10, true},
		stakeSpec{carol, 10, true},
	)

	s := Settle(bet, true, 0)
	assert.Equal(t, int64(11), payoutOf(t, s, alice))
	assert.Equal(t, int64(10), payoutOf(t, s, bob))
	assert.Equal(t, int64(10), payoutOf(t, s, carol))
	assert.Equal(t, int64(31), s.Distributed().Int64())
}

func TestSettleWithEmptyWinningSideRefunds(t *testing.T) {
	bet := betWith(
		stakeSpec{alice, 100, true},
		stakeSpec{bob, 50, true},
	)

	s := Settle(bet, false, 2_500)
	assert.False(t, s.Cancelled)
	assert.False(t, s.WinningOutcome)
	assert.Equal(t, int64(0), s.SimulatedYield.Int64())
	assert.Equal(t, int64(100), payoutOf(t, s, alice))
	assert.Equal(t, int64(50), payoutOf(t, s, bob))
}

func TestRefundReturnsExactPrincipal(t *testing.T) {
	bet := betWith(
		stakeSpec{alice, 100, true},
		stakeSpec{bob, 150, false},
	)

	s := Refund(bet)
	assert.True(t, s.Cancelled)
	assert.Equal(t, int64(100), payoutOf(t, s, alice))
	assert.Equal(t, int64(150), payoutOf(t, s, bob))
	assert.Equal(t, int64(250), s.Distributed().Int64())
	assert.Equal(t, int64(0), s.SimulatedYield.Int64())
}

func TestSettlementTransfersMintYieldFirst(t *testing.T) {
	bet := betWith(
		stakeSpec{alice, 60, true},
		stakeSpec{carol, 40, false},
	)
	s := Settle(bet, true, 1_000)

	transfers := settlementTransfers(s, custody)
	require.Len(t, transfers, 2)
	assert.Equal(t, YieldSource, transfers[0].From)
	assert.Equal(t, custody, transfers[0].To)
	assert.Equal(t, int64(10), transfers[0].Amount.Int64())
	assert.Equal(t, custody, transfers[1].From)
	assert.Equal(t, alice, transfers[1].To)
	assert.Equal(t, int64(110), transfers[1].Amount.Int64())

	book := NewBook(map[common.Address]*big.Int{custody: amt(100)})
	require.NoError(t, book.Check(transfers))
	book.Apply(transfers)
	assert.Equal(t, int64(0), book.BalanceOf(custody).Int64())
	assert.Equal(t, int64(-10), book.BalanceOf(YieldSource).Int64())
}

func TestBookCheckRejectsOverdraft(t *testing.T) {
	book := NewBook(map[common.Address]*big.Int{alice: amt(50)})

	err := book.Check([]domain.Transfer{
		{From: alice, To: bob, Amount: amt(30)},
		{From: alice, To: carol, Amount: amt(30)},
	})
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, int64(50), book.BalanceOf(alice).Int64())

	err = book.Check([]domain.Transfer{{From: alice, To: bob, Amount: amt(-1)}})
	require.ErrorIs(t, err, domain.ErrTransferFailed)
}

func TestBookCheckRejectsSelfTransfer(t *testing.T) {
	book := NewBook(map[common.Address]*big.Int{custody: amt(100)})

	err := book.Check([]domain.Transfer{{From: custody, To: custody, Amount: amt(10)}})
	require.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, int64(100), book.BalanceOf(custody).Int64())
}
