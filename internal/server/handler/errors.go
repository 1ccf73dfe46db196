package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/service"
)

// statusFor maps a registry error to an HTTP status:
//
//	validation     400 (404 for an unknown bet)
//	temporal       409
//	authorization  403
//	idempotency    409
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		if errors.Is(err, domain.ErrBetNotFound) {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case domain.KindTemporal, domain.KindIdempotency:
		return http.StatusConflict
	case domain.KindAuthorization:
		return http.StatusForbidden
	}
	if errors.Is(err, service.ErrNoEventLog) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeOpError writes err with its code and kind. Internal errors are logged
// and their text is not exposed.
func writeOpError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: operation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, status, errorBody{
		Error: err.Error(),
		Code:  domain.CodeOf(err),
		Kind:  string(domain.KindOf(err)),
	})
}
