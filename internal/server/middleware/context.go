package middleware

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type ctxKey int

const (
	callerKey ctxKey = iota
	requestIDKey
)

// WithCaller returns a context carrying the authenticated caller.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey, addr)
}

// Caller returns the address that signed the request, if any.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey).(common.Address)
	return addr, ok
}

// RequestID returns the id assigned by the logging middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
