package domain

import "errors"

// ErrorKind groups registry errors so callers can tell why a call was
// rejected. No rejected call mutates state, whatever its kind.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindTemporal      ErrorKind = "temporal"
	KindAuthorization ErrorKind = "authorization"
	KindIdempotency   ErrorKind = "idempotency"
	KindInternal      ErrorKind = "internal"
)

// Error is a categorised registry error. Sentinels below are compared with
// errors.Is through any amount of wrapping.
type Error struct {
	Kind ErrorKind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrBetNotFound        = newError(KindValidation, "BetNotFound", "bet not found")
	ErrInsufficientStake  = newError(KindValidation, "InsufficientStake", "stake below minimum")
	ErrInvalidCondition   = newError(KindValidation, "InvalidCondition", "condition must not be empty")
	ErrInvalidDuration    = newError(KindValidation, "InvalidDuration", "duration out of range")
	ErrTransferFailed     = newError(KindValidation, "TransferFailed", "token transfer failed")
	ErrAlreadyParticipant = newError(KindValidation, "AlreadyParticipant", "already a participant")
	ErrInvalidParameter   = newError(KindValidation, "InvalidParameter", "invalid parameter")

	ErrBetExpired         = newError(KindTemporal, "BetExpired", "bet expired")
	ErrResolutionNotReady = newError(KindTemporal, "ResolutionNotReady", "resolution not ready")

	ErrNotParticipant = newError(KindAuthorization, "NotParticipant", "not a participant")
	ErrNotAdmin       = newError(KindAuthorization, "NotAdmin", "caller is not the administrator")

	ErrAlreadyFinalized = newError(KindIdempotency, "AlreadyFinalized", "bet already finalized")
)

// Infrastructure errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrLockHeld     = errors.New("lock already held")
	ErrReplayed     = errors.New("request already seen")
)

// KindOf returns the category of err, or KindInternal when err is not a
// registry error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable error code of err, or "" when err is not a
// registry error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
