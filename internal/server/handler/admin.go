package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/domain"
)

// AdminService is what the administrator endpoints need.
type AdminService interface {
	AdminFinalize(ctx context.Context, caller common.Address, betID uint64, outcome, cancel bool) (domain.Settlement, error)
	SetYieldRate(ctx context.Context, caller common.Address, bps uint64) error
	SetMinStake(ctx context.Context, caller common.Address, amount *big.Int) error
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) error
	RenounceOwnership(ctx context.Context, caller common.Address) error
	AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AdminHandler serves administrator-only endpoints. Authorization is
// enforced by the registry; the handler only forwards the signed caller.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type adminFinalizeRequest struct {
	WinningOutcome bool `json:"winning_outcome"`
	Cancel         bool `json:"cancel"`
}

// Finalize forces an outcome or cancels a bet.
// POST /api/admin/bets/{id}/finalize
func (h *AdminHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := betID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req adminFinalizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.admin.AdminFinalize(r.Context(), from, id, req.WinningOutcome, req.Cancel)
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "admin_finalize"), err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(st))
}

type yieldRateRequest struct {
	Bps *uint64 `json:"bps"`
}

// SetYieldRate changes the simulated yield rate.
// PUT /api/admin/yield-rate
func (h *AdminHandler) SetYieldRate(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req yieldRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Bps == nil {
		writeError(w, http.StatusBadRequest, "bps is required")
		return
	}
	if err := h.admin.SetYieldRate(r.Context(), from, *req.Bps); err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "set_yield_rate"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"yield_rate": *req.Bps})
}

type minStakeRequest struct {
	Amount string `json:"amount"`
}

// SetMinStake changes the minimum stake.
// PUT /api/admin/min-stake
func (h *AdminHandler) SetMinStake(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req minStakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.admin.SetMinStake(r.Context(), from, v); err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "set_min_stake"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"min_stake": v.String()})
}

type ownerRequest struct {
	NewOwner string `json:"new_owner"`
}

// TransferOwnership hands over the administrator role.
// PUT /api/admin/owner
func (h *AdminHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.admin.TransferOwnership(r.Context(), from, owner); err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "transfer_ownership"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner})
}

// RenounceOwnership leaves the registry without an administrator.
// DELETE /api/admin/owner
func (h *AdminHandler) RenounceOwnership(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.admin.RenounceOwnership(r.Context(), from); err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "renounce_ownership"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": common.Address{}})
}

type auditView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt string         `json:"created_at"`
}

// ListAudit returns the audit log, newest first.
// GET /api/admin/audit
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.admin.AuditLog(r.Context(), parseListOpts(r))
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "audit"), err)
		return
	}
	out := make([]auditView, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }
