package handler

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/service"
)

// Response views render amounts as decimal strings.

type betView struct {
	ID                  uint64         `json:"id"`
	Creator             common.Address `json:"creator"`
	Condition           string         `json:"condition"`
	Expiration          time.Time      `json:"expiration"`
	Resolved            bool           `json:"resolved"`
	TotalStakeTrue      string         `json:"total_stake_true"`
	TotalStakeFalse     string         `json:"total_stake_false"`
	ResolutionFinalized bool           `json:"resolution_finalized"`
	WinningOutcome      bool           `json:"winning_outcome"`
	CreatedAt           time.Time      `json:"created_at"`
	CreatorPrediction   bool           `json:"creator_prediction"`
	Cancelled           bool           `json:"cancelled"`
	ParticipantCount    int            `json:"participant_count"`
	VoteCount           int            `json:"vote_count"`
	Phase               domain.Phase   `json:"phase"`
	ResolutionDeadline  time.Time      `json:"resolution_deadline"`
	AwaitingAdmin       bool           `json:"awaiting_admin"`
}

func newBetView(d domain.BetDetails) betView {
	return betView{
		ID:                  d.ID,
		Creator:             d.Creator,
		Condition:           d.Condition,
		Expiration:          d.Expiration,
		Resolved:            d.Resolved,
		TotalStakeTrue:      amount(d.TotalStakeTrue),
		TotalStakeFalse:     amount(d.TotalStakeFalse),
		ResolutionFinalized: d.ResolutionFinalized,
		WinningOutcome:      d.WinningOutcome,
		CreatedAt:           d.CreatedAt,
		CreatorPrediction:   d.CreatorPrediction,
		Cancelled:           d.Cancelled,
		ParticipantCount:    d.ParticipantCount,
		VoteCount:           d.VoteCount,
		Phase:               d.Phase,
		ResolutionDeadline:  d.ResolutionDeadline,
		AwaitingAdmin:       d.AwaitingAdmin,
	}
}

type participantView struct {
	Address    common.Address `json:"address"`
	Stake      string         `json:"stake"`
	Prediction bool           `json:"prediction"`
	JoinedAt   time.Time      `json:"joined_at"`
}

type payoutView struct {
	Address   common.Address `json:"address"`
	Principal string         `json:"principal"`
	Amount    string         `json:"amount"`
}

type settlementView struct {
	BetID          uint64       `json:"bet_id"`
	Cancelled      bool         `json:"cancelled"`
	WinningOutcome bool         `json:"winning_outcome"`
	Principal      string       `json:"principal"`
	SimulatedYield string       `json:"simulated_yield"`
	Payouts        []payoutView `json:"payouts"`
}

func newSettlementView(s domain.Settlement) settlementView {
	out := settlementView{
		BetID:          s.BetID,
		Cancelled:      s.Cancelled,
		WinningOutcome: s.WinningOutcome,
		Principal:      amount(s.Principal),
		SimulatedYield: amount(s.SimulatedYield),
		Payouts:        make([]payoutView, 0, len(s.Payouts)),
	}
	for _, p := range s.Payouts {
		out.Payouts = append(out.Payouts, payoutView{
			Address:   p.Address,
			Principal: amount(p.Principal),
			Amount:    amount(p.Amount),
		})
	}
	return out
}

type registryView struct {
	MinStake                string         `json:"min_stake"`
	DefaultBetDuration      string         `json:"default_bet_duration"`
	DefaultBetDurationSecs  int64          `json:"default_bet_duration_seconds"`
	ResolutionPeriod        string         `json:"resolution_period"`
	ResolutionPeriodSeconds int64          `json:"resolution_period_seconds"`
	BetCounter              uint64         `json:"bet_counter"`
	YieldRate               uint64         `json:"yield_rate"`
	Owner                   common.Address `json:"owner"`
	Custody                 common.Address `json:"custody"`
	MaxDurationDays         uint64         `json:"max_duration_days"`
}

func newRegistryView(info service.RegistryInfo) registryView {
	return registryView{
		MinStake:                amount(info.MinStake),
		DefaultBetDuration:      info.DefaultBetDuration.String(),
		DefaultBetDurationSecs:  int64(info.DefaultBetDuration.Seconds()),
		ResolutionPeriod:        info.ResolutionPeriod.String(),
		ResolutionPeriodSeconds: int64(info.ResolutionPeriod.Seconds()),
		BetCounter:              info.BetCounter,
		YieldRate:               info.YieldRateBps,
		Owner:                   info.Owner,
		Custody:                 info.Custody,
		MaxDurationDays:         info.MaxDurationDays,
	}
}

type eventView struct {
	ID    int64            `json:"id"`
	Type  domain.EventType `json:"type"`
	BetID uint64           `json:"bet_id,omitempty"`
	At    time.Time        `json:"at"`
	Data  any              `json:"data"`
}

func newEventViews(evs []domain.StoredEvent) []eventView {
	out := make([]eventView, 0, len(evs))
	for _, e := range evs {
		out = append(out, eventView{ID: e.ID, Type: e.Type, BetID: e.BetID, At: e.At, Data: e.Data})
	}
	return out
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
