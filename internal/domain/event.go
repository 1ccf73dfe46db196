package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a committed state transition.
type EventType string

const (
	EventBetCreated             EventType = "bet_created"
	EventBetJoined              EventType = "bet_joined"
	EventResolutionVote         EventType = "resolution_vote_submitted"
	EventBetResolved            EventType = "bet_resolved"
	EventBetResolutionCancelled EventType = "bet_resolution_cancelled"
	EventOwnershipTransferred   EventType = "ownership_transferred"
	EventYieldRateChanged       EventType = "yield_rate_changed"
	EventMinStakeChanged        EventType = "min_stake_changed"
)

// Event is a notification emitted exactly once per committed transition.
// Data holds one of the payload types below. Amounts are decimal strings.
type Event struct {
	Type  EventType `json:"type"`
	BetID uint64    `json:"bet_id,omitempty"`
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

type BetCreated struct {
	ID                uint64         `json:"id"`
	Creator           common.Address `json:"creator"`
	Condition         string         `json:"condition"`
	Expiration        time.Time      `json:"expiration"`
	CreatorPrediction bool           `json:"creator_prediction"`
	Stake             string         `json:"stake"`
}

type BetJoined struct {
	BetID       uint64         `json:"bet_id"`
	Participant common.Address `json:"participant"`
	Prediction  bool           `json:"prediction"`
	Stake       string         `json:"stake"`
}

// ResolutionVoteSubmitted carries the voter's stake as VoteWeight. The
// weight is informational; consensus requires unanimity.
type ResolutionVoteSubmitted struct {
	BetID       uint64         `json:"bet_id"`
	Participant common.Address `json:"participant"`
	Outcome     bool           `json:"outcome"`
	VoteWeight  string         `json:"vote_weight"`
}

type BetResolved struct {
	BetID          uint64 `json:"bet_id"`
	WinningOutcome bool   `json:"winning_outcome"`
	SimulatedYield string `json:"simulated_yield"`
	Forced         bool   `json:"forced"`
}

type BetResolutionCancelled struct {
	BetID uint64 `json:"bet_id"`
}

type OwnershipTransferred struct {
	PreviousOwner common.Address `json:"previous_owner"`
	NewOwner      common.Address `json:"new_owner"`
}

type YieldRateChanged struct {
	Previous uint64 `json:"previous"`
	Current  uint64 `json:"current"`
}

type MinStakeChanged struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
}
