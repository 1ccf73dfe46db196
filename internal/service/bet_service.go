// Package service exposes the bet registry to the transport layer. It adds
// audit logging for administrative actions, operator alerts, and read
// projections over the event log.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/ledger"
)

// ErrNoEventLog is returned by event queries when the engine runs without
// persistence.
var ErrNoEventLog = errors.New("service: event log not available")

// RegistryInfo is the public view of the registry globals.
type RegistryInfo struct {
	MinStake           *big.Int       `json:"min_stake"`
	DefaultBetDuration time.Duration  `json:"default_bet_duration"`
	ResolutionPeriod   time.Duration  `json:"resolution_period"`
	BetCounter         uint64         `json:"bet_counter"`
	YieldRateBps       uint64         `json:"yield_rate"`
	Owner              common.Address `json:"owner"`
	Custody            common.Address `json:"custody"`
	MaxDurationDays    uint64         `json:"max_duration_days"`
}

// CreateBetRequest carries the arguments of createBet.
type CreateBetRequest struct {
	Stake             *big.Int
	Condition         string
	DurationDays      uint64
	CreatorPrediction bool
}

// Recorder observes operation outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveOp(op string, err error)
	ObserveSettlement(st domain.Settlement, forced bool)
}

// BetService is the single entry point for registry operations coming from
// the API and the CLI.
type BetService struct {
	registry *ledger.Registry
	events   domain.EventStore
	audit    domain.AuditStore
	recorder Recorder
	logger   *slog.Logger
}

// NewBetService creates a BetService. events, audit and recorder may be nil.
func NewBetService(
	registry *ledger.Registry,
	events domain.EventStore,
	audit domain.AuditStore,
	recorder Recorder,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		registry: registry,
		events:   events,
		audit:    audit,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "bet_service")),
	}
}

// Registry returns the underlying registry.
func (s *BetService) Registry() *ledger.Registry {
	return s.registry
}

// CreateBet opens a bet on behalf of caller.
func (s *BetService) CreateBet(ctx context.Context, caller common.Address, req CreateBetRequest) (domain.BetDetails, error) {
	id, err := s.registry.CreateBet(ctx, caller, req.Stake, req.Condition, req.DurationDays, req.CreatorPrediction)
	if err != nil {
		return domain.BetDetails{}, s.rejected(ctx, "create_bet", caller, 0, err)
	}
	s.observe("create_bet", nil)
	s.logger.InfoContext(ctx, "bet created",
		slog.Uint64("bet_id", id),
		slog.String("creator", caller.Hex()),
		slog.String("stake", req.Stake.String()),
	)
	return s.registry.GetBetDetails(id)
}

// JoinBet stakes on an existing bet.
func (s *BetService) JoinBet(ctx context.Context, caller common.Address, betID uint64, stake *big.Int, prediction bool) (domain.BetDetails, error) {
	if err := s.registry.JoinBet(ctx, caller, betID, stake, prediction); err != nil {
		return domain.BetDetails{}, s.rejected(ctx, "join_bet", caller, betID, err)
	}
	s.observe("join_bet", nil)
	s.logger.InfoContext(ctx, "bet joined",
		slog.Uint64("bet_id", betID),
		slog.String("participant", caller.Hex()),
		slog.Bool("prediction", prediction),
	)
	return s.registry.GetBetDetails(betID)
}

// SubmitVote records the caller's resolution vote.
func (s *BetService) SubmitVote(ctx context.Context, caller common.Address, betID uint64, outcome bool) (domain.BetDetails, error) {
	if err := s.registry.SubmitResolutionOutcome(ctx, caller, betID, outcome); err != nil {
		return domain.BetDetails{}, s.rejected(ctx, "submit_vote", caller, betID, err)
	}
	s.observe("submit_vote", nil)
	return s.registry.GetBetDetails(betID)
}

// Finalize settles a bet by unanimous consensus.
func (s *BetService) Finalize(ctx context.Context, caller common.Address, betID uint64) (domain.Settlement, error) {
	st, err := s.registry.FinalizeResolution(ctx, caller, betID)
	if err != nil {
		return domain.Settlement{}, s.rejected(ctx, "finalize", caller, betID, err)
	}
	s.observe("finalize", nil)
	s.settled(st, false)
	s.logSettlement(ctx, "bet finalized", st)
	return st, nil
}

// AdminFinalize settles or cancels a bet with administrator authority.
func (s *BetService) AdminFinalize(ctx context.Context, caller common.Address, betID uint64, outcome, cancel bool) (domain.Settlement, error) {
	st, err := s.registry.AdminFinalizeResolution(ctx, caller, betID, outcome, cancel)
	if err != nil {
		return domain.Settlement{}, s.rejected(ctx, "admin_finalize", caller, betID, err)
	}
	s.observe("admin_finalize", nil)
	s.settled(st, true)
	s.logSettlement(ctx, "bet finalized by admin", st)
	s.logAudit(ctx, "admin.finalize", map[string]any{
		"caller":          caller.Hex(),
		"bet_id":          betID,
		"winning_outcome": outcome,
		"cancel":          cancel,
		"distributed":     st.Distributed().String(),
	})
	return st, nil
}

// SetYieldRate changes the simulated yield rate.
func (s *BetService) SetYieldRate(ctx context.Context, caller common.Address, bps uint64) error {
	if err := s.registry.SetYieldRate(ctx, caller, bps); err != nil {
		return s.rejected(ctx, "set_yield_rate", caller, 0, err)
	}
	s.observe("set_yield_rate", nil)
	s.logAudit(ctx, "admin.set_yield_rate", map[string]any{"caller": caller.Hex(), "bps": bps})
	return nil
}

// SetMinStake changes the minimum stake for future joins and creations.
func (s *BetService) SetMinStake(ctx context.Context, caller common.Address, amount *big.Int) error {
	if err := s.registry.SetMinStake(ctx, caller, amount); err != nil {
		return s.rejected(ctx, "set_min_stake", caller, 0, err)
	}
	s.observe("set_min_stake", nil)
	s.logAudit(ctx, "admin.set_min_stake", map[string]any{"caller": caller.Hex(), "amount": amount.String()})
	return nil
}

// TransferOwnership hands the administrator role to newOwner.
func (s *BetService) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	if err := s.registry.TransferOwnership(ctx, caller, newOwner); err != nil {
		return s.rejected(ctx, "transfer_ownership", caller, 0, err)
	}
	s.observe("transfer_ownership", nil)
	s.logAudit(ctx, "admin.transfer_ownership", map[string]any{"caller": caller.Hex(), "new_owner": newOwner.Hex()})
	return nil
}

// RenounceOwnership leaves the registry without an administrator.
func (s *BetService) RenounceOwnership(ctx context.Context, caller common.Address) error {
	if err := s.registry.RenounceOwnership(ctx, caller); err != nil {
		return s.rejected(ctx, "renounce_ownership", caller, 0, err)
	}
	s.observe("renounce_ownership", nil)
	s.logAudit(ctx, "admin.renounce_ownership", map[string]any{"caller": caller.Hex()})
	return nil
}

// BetDetails returns the projection of one bet.
func (s *BetService) BetDetails(betID uint64) (domain.BetDetails, error) {
	return s.registry.GetBetDetails(betID)
}

// ParticipantStake returns the stake of participant on a bet.
func (s *BetService) ParticipantStake(betID uint64, participant common.Address) (*big.Int, error) {
	return s.registry.GetParticipantStake(betID, participant)
}

// Participants lists the stakes of a bet in join order.
func (s *BetService) Participants(betID uint64) ([]domain.Participant, error) {
	return s.registry.Participants(betID)
}

// ListBets pages through bets in id order.
func (s *BetService) ListBets(opts domain.ListOpts) []domain.BetDetails {
	return s.registry.ListBets(opts)
}

// BalanceOf returns the token balance of addr.
func (s *BetService) BalanceOf(addr common.Address) *big.Int {
	return s.registry.BalanceOf(addr)
}

// Info returns the registry globals.
func (s *BetService) Info() RegistryInfo {
	p := s.registry.Params()
	return RegistryInfo{
		MinStake:           p.MinStake,
		DefaultBetDuration: p.DefaultDuration,
		ResolutionPeriod:   p.ResolutionPeriod,
		BetCounter:         s.registry.BetCounter(),
		YieldRateBps:       p.YieldRateBps,
		Owner:              p.Owner,
		Custody:            p.Custody,
		MaxDurationDays:    p.MaxDurationDays,
	}
}

// BetEvents returns the committed events of a bet, oldest first.
func (s *BetService) BetEvents(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.StoredEvent, error) {
	if s.events == nil {
		return nil, ErrNoEventLog
	}
	if _, err := s.registry.GetBetDetails(betID); err != nil {
		return nil, err
	}
	evs, err := s.events.ListByBet(ctx, betID, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: events of bet %d: %w", betID, err)
	}
	return evs, nil
}

// RecentEvents returns the most recent committed events.
func (s *BetService) RecentEvents(ctx context.Context, opts domain.ListOpts) ([]domain.StoredEvent, error) {
	if s.events == nil {
		return nil, ErrNoEventLog
	}
	evs, err := s.events.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: recent events: %w", err)
	}
	return evs, nil
}

// AuditLog lists audit entries, newest first.
func (s *BetService) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, ErrNoEventLog
	}
	return s.audit.List(ctx, opts)
}

// rejected logs a failed operation and returns err unchanged so callers can
// match it with errors.Is.
func (s *BetService) rejected(ctx context.Context, op string, caller common.Address, betID uint64, err error) error {
	s.observe(op, err)
	level := slog.LevelInfo
	if domain.KindOf(err) == domain.KindInternal {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "operation rejected",
		slog.String("op", op),
		slog.String("caller", caller.Hex()),
		slog.Uint64("bet_id", betID),
		slog.String("kind", string(domain.KindOf(err))),
		slog.String("error", err.Error()),
	)
	return err
}

func (s *BetService) observe(op string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOp(op, err)
	}
}

func (s *BetService) settled(st domain.Settlement, forced bool) {
	if s.recorder != nil {
		s.recorder.ObserveSettlement(st, forced)
	}
}

func (s *BetService) logSettlement(ctx context.Context, msg string, st domain.Settlement) {
	s.logger.InfoContext(ctx, msg,
		slog.Uint64("bet_id", st.BetID),
		slog.Bool("cancelled", st.Cancelled),
		slog.Bool("winning_outcome", st.WinningOutcome),
		slog.String("principal", st.Principal.String()),
		slog.String("simulated_yield", st.SimulatedYield.String()),
		slog.Int("payouts", len(st.Payouts)),
	)
}

func (s *BetService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
