package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Phase is the lifecycle stage of a bet as observed at a given instant.
type Phase string

const (
	PhaseActive            Phase = "active"
	PhasePendingResolution Phase = "pending_resolution"
	PhaseFinalized         Phase = "finalized"
	PhaseCancelled         Phase = "cancelled"
)

// Participant is one escrowed stake on a bet. An address holds at most one
// participation per bet.
type Participant struct {
	Address    common.Address `json:"address"`
	Stake      *big.Int       `json:"stake"`
	Prediction bool           `json:"prediction"`
	JoinedAt   time.Time      `json:"joined_at"`
}

// Bet is the authoritative record of a single wager.
type Bet struct {
	ID                uint64         `json:"id"`
	Creator           common.Address `json:"creator"`
	Condition         string         `json:"condition"`
	CreatedAt         time.Time      `json:"created_at"`
	Expiration        time.Time      `json:"expiration"`
	CreatorPrediction bool           `json:"creator_prediction"`

	// Participants in join order. The creator is always first.
	Participants []Participant `json:"participants"`

	TotalStakeTrue  *big.Int `json:"total_stake_true"`
	TotalStakeFalse *big.Int `json:"total_stake_false"`

	Votes map[common.Address]bool `json:"votes"`

	Resolved            bool       `json:"resolved"`
	WinningOutcome      bool       `json:"winning_outcome"`
	ResolutionFinalized bool       `json:"resolution_finalized"`
	Cancelled           bool       `json:"cancelled"`
	FinalizedAt         *time.Time `json:"finalized_at,omitempty"`
}

// Participant returns the participation of addr, if any.
func (b *Bet) Participant(addr common.Address) (Participant, bool) {
	for _, p := range b.Participants {
		if p.Address == addr {
			return p, true
		}
	}
	return Participant{}, false
}

// IsParticipant reports whether addr has a stake on the bet.
func (b *Bet) IsParticipant(addr common.Address) bool {
	_, ok := b.Participant(addr)
	return ok
}

// TotalStake is the sum of both sides.
func (b *Bet) TotalStake() *big.Int {
	return new(big.Int).Add(b.TotalStakeTrue, b.TotalStakeFalse)
}

// SideTotal returns the stake total for the given prediction.
func (b *Bet) SideTotal(prediction bool) *big.Int {
	if prediction {
		return b.TotalStakeTrue
	}
	return b.TotalStakeFalse
}

// Terminal reports whether the bet has been paid out or refunded.
func (b *Bet) Terminal() bool {
	return b.ResolutionFinalized || b.Cancelled
}

// Phase derives the lifecycle stage at now. Time-based transitions are
// evaluated lazily; nothing fires at expiry.
func (b *Bet) Phase(now time.Time) Phase {
	switch {
	case b.Cancelled:
		return PhaseCancelled
	case b.ResolutionFinalized:
		return PhaseFinalized
	case now.Before(b.Expiration):
		return PhaseActive
	default:
		return PhasePendingResolution
	}
}

// ResolutionDeadline is the instant after which, absent consensus, only the
// administrator can settle the bet.
func (b *Bet) ResolutionDeadline(period time.Duration) time.Time {
	return b.Expiration.Add(period)
}

// Consensus reports the agreed outcome when every participant has voted and
// all votes are identical.
func (b *Bet) Consensus() (outcome bool, ok bool) {
	if len(b.Participants) == 0 || len(b.Votes) != len(b.Participants) {
		return false, false
	}
	first := true
	for _, p := range b.Participants {
		v, voted := b.Votes[p.Address]
		if !voted {
			return false, false
		}
		if first {
			outcome, first = v, false
			continue
		}
		if v != outcome {
			return false, false
		}
	}
	return outcome, true
}

// Clone returns a deep copy so a transition can be prepared without touching
// the committed record.
func (b *Bet) Clone() *Bet {
	out := *b
	out.Participants = make([]Participant, len(b.Participants))
	for i, p := range b.Participants {
		p.Stake = new(big.Int).Set(p.Stake)
		out.Participants[i] = p
	}
	out.TotalStakeTrue = new(big.Int).Set(b.TotalStakeTrue)
	out.TotalStakeFalse = new(big.Int).Set(b.TotalStakeFalse)
	out.Votes = make(map[common.Address]bool, len(b.Votes))
	for k, v := range b.Votes {
		out.Votes[k] = v
	}
	if b.FinalizedAt != nil {
		t := *b.FinalizedAt
		out.FinalizedAt = &t
	}
	return &out
}

// BetDetails is the read projection served to the UI. The first eight fields
// mirror getBetDetails.
type BetDetails struct {
	ID                  uint64         `json:"id"`
	Creator             common.Address `json:"creator"`
	Condition           string         `json:"condition"`
	Expiration          time.Time      `json:"expiration"`
	Resolved            bool           `json:"resolved"`
	TotalStakeTrue      *big.Int       `json:"total_stake_true"`
	TotalStakeFalse     *big.Int       `json:"total_stake_false"`
	ResolutionFinalized bool           `json:"resolution_finalized"`
	WinningOutcome      bool           `json:"winning_outcome"`

	CreatedAt          time.Time `json:"created_at"`
	CreatorPrediction  bool      `json:"creator_prediction"`
	Cancelled          bool      `json:"cancelled"`
	ParticipantCount   int       `json:"participant_count"`
	VoteCount          int       `json:"vote_count"`
	Phase              Phase     `json:"phase"`
	ResolutionDeadline time.Time `json:"resolution_deadline"`
	AwaitingAdmin      bool      `json:"awaiting_admin"`
}

// Details projects b at now under the given resolution period.
func (b *Bet) Details(now time.Time, resolutionPeriod time.Duration) BetDetails {
	deadline := b.ResolutionDeadline(resolutionPeriod)
	return BetDetails{
		ID:                  b.ID,
		Creator:             b.Creator,
		Condition:           b.Condition,
		Expiration:          b.Expiration,
		Resolved:            b.Resolved,
		TotalStakeTrue:      new(big.Int).Set(b.TotalStakeTrue),
		TotalStakeFalse:     new(big.Int).Set(b.TotalStakeFalse),
		ResolutionFinalized: b.ResolutionFinalized,
		WinningOutcome:      b.WinningOutcome,
		CreatedAt:           b.CreatedAt,
		CreatorPrediction:   b.CreatorPrediction,
		Cancelled:           b.Cancelled,
		ParticipantCount:    len(b.Participants),
		VoteCount:           len(b.Votes),
		Phase:               b.Phase(now),
		ResolutionDeadline:  deadline,
		AwaitingAdmin:       !b.Terminal() && !now.Before(deadline),
	}
}
