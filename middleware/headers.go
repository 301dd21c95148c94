package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/singlebase/singlebase-go/core"
)

// RequestIDHeader is the header set by RequestID.
const RequestIDHeader = "X-Request-ID"

// RequestID creates middleware that sets X-Request-ID on every request that
// does not already carry one. The dispatch's own request ID is used when
// present so logs, traces and server records line up.
func RequestID() core.Middleware {
	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			ensureHeader(call)
			if call.Header.Get(RequestIDHeader) == "" {
				id, ok := core.RequestIDFromContext(ctx)
				if !ok {
					id = uuid.NewString()
				}
				call.Header.Set(RequestIDHeader, id)
			}
			return next(ctx, call)
		}
	}
}

// Header creates middleware that sets a static header on every request.
func Header(key, value string) core.Middleware {
	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			ensureHeader(call)
			call.Header.Set(key, value)
			return next(ctx, call)
		}
	}
}

func ensureHeader(call *core.Call) {
	if call.Header == nil {
		call.Header = make(http.Header)
	}
}
