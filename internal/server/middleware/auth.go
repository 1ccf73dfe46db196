package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/visioninhope/BetM3/internal/crypto"
	"github.com/visioninhope/BetM3/internal/domain"
)

// AuthConfig configures request signature verification.
type AuthConfig struct {
	// MaxSkew bounds the distance between the signed timestamp and now.
	MaxSkew time.Duration
	// MaxBodyBytes caps the body read for hashing.
	MaxBodyBytes int64
	// Guard rejects signatures seen before. Nil disables replay checks.
	Guard domain.ReplayGuard
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// SignedRequests authenticates every state-changing request. The caller
// signs method, path, timestamp and body hash with an Ethereum key; the
// recovered address is stored in the request context. Safe methods pass
// through unauthenticated.
func SignedRequests(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !needsSignature(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			addrHex := r.Header.Get(crypto.HeaderAddress)
			tsRaw := r.Header.Get(crypto.HeaderTimestamp)
			sig := r.Header.Get(crypto.HeaderSignature)
			if addrHex == "" || tsRaw == "" || sig == "" {
				writeUnauthorized(w, "missing signature headers")
				return
			}
			if !common.IsHexAddress(addrHex) {
				writeUnauthorized(w, "invalid address header")
				return
			}
			ts, err := strconv.ParseInt(tsRaw, 10, 64)
			if err != nil {
				writeUnauthorized(w, "invalid timestamp header")
				return
			}
			if skew := cfg.Now().Sub(time.Unix(ts, 0)); skew > cfg.MaxSkew || -skew > cfg.MaxSkew {
				writeUnauthorized(w, "request timestamp outside allowed skew")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeJSONError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller := common.HexToAddress(addrHex)
			if err := crypto.VerifyRequest(caller, r.Method, r.URL.Path, ts, body, sig); err != nil {
				writeUnauthorized(w, "signature does not match address")
				return
			}

			if cfg.Guard != nil {
				err := cfg.Guard.Remember(r.Context(), strings.ToLower(sig), 2*cfg.MaxSkew)
				switch {
				case errors.Is(err, domain.ErrReplayed):
					writeUnauthorized(w, "request already processed")
					return
				case err != nil:
					cfg.Logger.ErrorContext(r.Context(), "middleware: replay guard failed",
						slog.String("error", err.Error()),
					)
					writeJSONError(w, http.StatusServiceUnavailable, "replay protection unavailable")
					return
				}
			}

			noteCaller(w, caller.Hex())
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func needsSignature(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSONError(w, http.StatusUnauthorized, msg)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
