package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/service"
)

// BetService is what the bet endpoints need from the service layer.
type BetService interface {
	CreateBet(ctx context.Context, caller common.Address, req service.CreateBetRequest) (domain.BetDetails, error)
	JoinBet(ctx context.Context, caller common.Address, betID uint64, stake *big.Int, prediction bool) (domain.BetDetails, error)
	SubmitVote(ctx context.Context, caller common.Address, betID uint64, outcome bool) (domain.BetDetails, error)
	Finalize(ctx context.Context, caller common.Address, betID uint64) (domain.Settlement, error)
	BetDetails(betID uint64) (domain.BetDetails, error)
	ParticipantStake(betID uint64, participant common.Address) (*big.Int, error)
	Participants(betID uint64) ([]domain.Participant, error)
	ListBets(opts domain.ListOpts) []domain.BetDetails
	BetEvents(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.StoredEvent, error)
}

// BetHandler serves the bet lifecycle endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type listBetsResponse struct {
	Bets   []betView `json:"bets"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// ListBets pages through bets in id order.
// GET /api/bets?limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	details := h.bets.ListBets(opts)
	views := make([]betView, 0, len(details))
	for _, d := range details {
		views = append(views, newBetView(d))
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: views, Limit: opts.Limit, Offset: opts.Offset})
}

// GetBet returns the details of one bet.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.bets.BetDetails(id)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "get_bet"), err)
		return
	}
	writeJSON(w, http.StatusOK, newBetView(d))
}

// ListParticipants returns the stakes of a bet in join order.
// GET /api/bets/{id}/participants
func (h *BetHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ps, err := h.bets.Participants(id)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "list_participants"), err)
		return
	}
	out := make([]participantView, 0, len(ps))
	for _, p := range ps {
		out = append(out, participantView{
			Address:    p.Address,
			Stake:      amount(p.Stake),
			Prediction: p.Prediction,
			JoinedAt:   p.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": out})
}

// GetParticipantStake returns one address's stake, zero if it never joined.
// GET /api/bets/{id}/participants/{addr}
func (h *BetHandler) GetParticipantStake(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := h.bets.ParticipantStake(id, addr)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "participant_stake"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bet_id":      id,
		"participant": addr,
		"stake":       amount(stake),
	})
}

// ListEvents returns the committed events of a bet.
// GET /api/bets/{id}/events
func (h *BetHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evs, err := h.bets.BetEvents(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "bet_events"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": newEventViews(evs)})
}

type createBetRequest struct {
	Stake        string `json:"stake"`
	Condition    string `json:"condition"`
	DurationDays uint64 `json:"duration_days"`
	Prediction   bool   `json:"prediction"`
}

// CreateBet opens a bet with the caller as creator.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req createBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.bets.CreateBet(r.Context(), from, service.CreateBetRequest{
		Stake:             stake,
		Condition:         req.Condition,
		DurationDays:      req.DurationDays,
		CreatorPrediction: req.Prediction,
	})
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "create_bet"), err)
		return
	}
	w.Header().Set("Location", "/api/bets/"+itoa(d.ID))
	writeJSON(w, http.StatusCreated, newBetView(d))
}

type joinBetRequest struct {
	Stake      string `json:"stake"`
	Prediction bool   `json:"prediction"`
}

// JoinBet stakes the caller on an existing bet.
// POST /api/bets/{id}/join
func (h *BetHandler) JoinBet(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req joinBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.bets.JoinBet(r.Context(), from, id, stake, req.Prediction)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "join_bet"), err)
		return
	}
	writeJSON(w, http.StatusOK, newBetView(d))
}

type voteRequest struct {
	Outcome *bool `json:"outcome"`
}

// SubmitVote records the caller's view of the outcome.
// POST /api/bets/{id}/votes
func (h *BetHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	d, err := h.bets.SubmitVote(r.Context(), from, id, *req.Outcome)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "submit_vote"), err)
		return
	}
	writeJSON(w, http.StatusOK, newBetView(d))
}

// Finalize settles a bet on which every participant agrees.
// POST /api/bets/{id}/finalize
func (h *BetHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.bets.Finalize(r.Context(), from, id)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "finalize"), err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(st))
}
