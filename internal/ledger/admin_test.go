package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/domain"
)

func TestAdminOperationsRequireOwner(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, alice, 100, true)
	h.pastWindow()

	_, err := h.reg.AdminFinalizeResolution(ctx, alice, id, true, false)
	require.ErrorIs(t, err, domain.ErrNotAdmin)
	assert.Equal(t, domain.KindAuthorization, domain.KindOf(err))

	require.ErrorIs(t, h.reg.SetYieldRate(ctx, bob, 100), domain.ErrNotAdmin)
	require.ErrorIs(t, h.reg.SetMinStake(ctx, bob, amt(1)), domain.ErrNotAdmin)
	require.ErrorIs(t, h.reg.TransferOwnership(ctx, bob, bob), domain.ErrNotAdmin)
	require.ErrorIs(t, h.reg.RenounceOwnership(ctx, bob), domain.ErrNotAdmin)

	assert.Equal(t, admin, h.reg.Params().Owner)
	assert.Empty(t, h.pub.types()[1:])
}

func TestAdminOverrideWaitsForResolutionWindow(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, alice, 100, true)
	h.join(t, id, bob, 100, false)

	h.clock.Advance(day)
	_, err := h.reg.AdminFinalizeResolution(ctx, admin, id, true, false)
	require.ErrorIs(t, err, domain.ErrResolutionNotReady)

	h.clock.Advance(resolutionPeriod)
	s, err := h.reg.AdminFinalizeResolution(ctx, admin, id, true, false)
	require.NoError(t, err)
	assert.Equal(t, int64(200), s.Distributed().Int64())
	assert.Equal(t, int64(10_100), h.balance(alice))

	last := h.pub.events[len(h.pub.events)-1]
	assert.Equal(t, domain.BetResolved{BetID: id, WinningOutcome: true, SimulatedYield: "0", Forced: true}, last.Data)
}

func TestAdminOverrideWithoutTimeoutGate(t *testing.T) {
	h := newHarness(t, func(p *domain.Params) { p.AdminRequiresTimeout = false })
	id := h.create(t, alice, 100, true)

	_, err := h.reg.AdminFinalizeResolution(ctx, admin, id, false, false)
	require.NoError(t, err)

	d, err := h.reg.GetBetDetails(id)
	require.NoError(t, err)
	assert.True(t, d.Resolved)
	assert.False(t, d.WinningOutcome)
	// Nobody predicted false, so the creator is refunded.
	assert.Equal(t, int64(10_000), h.balance(alice))
}

func TestAdminCancelRefundsPrincipal(t *testing.T) {
	h := newHarness(t, func(p *domain.Params) { p.YieldRateBps = 900 })
	id := h.create(t, alice, 100, true)
	h.join(t, id, bob, 150, false)
	h.pastWindow()

	s, err := h.reg.AdminFinalizeResolution(ctx, admin, id, true, true)
	require.NoError(t, err)
	assert.True(t, s.Cancelled)

	assert.Equal(t, int64(10_000), h.balance(alice))
	assert.Equal(t, int64(10_000), h.balance(bob))
	assert.Equal(t, int64(0), h.balance(custody))

	d, err := h.reg.GetBetDetails(id)
	require.NoError(t, err)
	assert.True(t, d.ResolutionFinalized)
	assert.True(t, d.Cancelled)
	assert.False(t, d.Resolved)
	assert.Equal(t, domain.PhaseCancelled, d.Phase)

	last := h.pub.events[len(h.pub.events)-1]
	assert.Equal(t, domain.EventBetResolutionCancelled, last.Type)
}

func TestSetYieldRate(t *testing.T) {
	h := newHarness(t)

	err := h.reg.SetYieldRate(ctx, admin, domain.MaxYieldRateBps+1)
	require.ErrorIs(t, err, domain.ErrInvalidParameter)

	require.NoError(t, h.reg.SetYieldRate(ctx, admin, domain.MaxYieldRateBps))
	require.NoError(t, h.reg.SetYieldRate(ctx, admin, 250))
	assert.Equal(t, uint64(250), h.reg.Params().YieldRateBps)

	assert.Equal(t, domain.YieldRateChanged{Previous: domain.MaxYieldRateBps, Current: 250},
		h.pub.events[len(h.pub.events)-1].Data)
}

// The rate in force at settlement applies, not the rate at creation.
func TestYieldRateReadAtSettlement(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, alice, 100, true)
	h.join(t, id, bob, 100, false)
	require.NoError(t, h.reg.SetYieldRate(ctx, admin, 1_000))
	h.vote(t, id, alice, true)
	h.vote(t, id, bob, true)

	s, err := h.reg.FinalizeResolution(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.SimulatedYield.Int64())
	assert.Equal(t, int64(10_120), h.balance(alice))
}

func TestTransferOwnership(t *testing.T) {
	h := newHarness(t)

	err := h.reg.TransferOwnership(ctx, admin, common.Address{})
	require.ErrorIs(t, err, domain.ErrInvalidParameter)

	require.NoError(t, h.reg.TransferOwnership(ctx, admin, carol))
	assert.Equal(t, carol, h.reg.Params().Owner)
	require.ErrorIs(t, h.reg.SetYieldRate(ctx, admin, 1), domain.ErrNotAdmin)
	require.NoError(t, h.reg.SetYieldRate(ctx, carol, 1))

	assert.Equal(t, domain.OwnershipTransferred{PreviousOwner: admin, NewOwner: carol}, h.pub.events[0].Data)
}

func TestRenounceOwnershipLocksAdministration(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.reg.RenounceOwnership(ctx, admin))

	assert.Equal(t, common.Address{}, h.reg.Params().Owner)
	require.ErrorIs(t, h.reg.SetYieldRate(ctx, admin, 1), domain.ErrNotAdmin)
	require.ErrorIs(t, h.reg.SetYieldRate(ctx, common.Address{}, 1), domain.ErrNotAdmin)
}

func TestSetMinStakeRejectsNonPositive(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.reg.SetMinStake(ctx, admin, amt(0)), domain.ErrInvalidParameter)
	require.ErrorIs(t, h.reg.SetMinStake(ctx, admin, nil), domain.ErrInvalidParameter)
	assert.Equal(t, int64(10), h.reg.Params().MinStake.Int64())
}
