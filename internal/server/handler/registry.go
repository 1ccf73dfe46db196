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

// RegistryService is what the registry-wide read endpoints need.
type RegistryService interface {
	Info() service.RegistryInfo
	BalanceOf(addr common.Address) *big.Int
	RecentEvents(ctx context.Context, opts domain.ListOpts) ([]domain.StoredEvent, error)
}

// RegistryHandler serves globals, balances and the event log.
type RegistryHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

// NewRegistryHandler creates a RegistryHandler.
func NewRegistryHandler(registry RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

// GetRegistry returns the registry globals.
// GET /api/registry
func (h *RegistryHandler) GetRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newRegistryView(h.registry.Info()))
}

// GetBalance returns the token balance of an account.
// GET /api/accounts/{addr}/balance
func (h *RegistryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"balance": amount(h.registry.BalanceOf(addr)),
	})
}

// ListEvents returns the most recent committed events.
// GET /api/events?limit=50
func (h *RegistryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := h.registry.RecentEvents(r.Context(), parseListOpts(r))
	if err != nil {
		writeOpError(w, r, logHandler(h.logger, r, "recent_events"), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": newEventViews(evs)})
}
