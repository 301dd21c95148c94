// Package middleware provides transport middleware for the Singlebase client.
//
// Middleware wraps the single HTTP round trip of a dispatch:
//
//	client, err := core.NewClient(cfg, core.WithMiddleware(
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	    middleware.RateLimitPerSecond(20, 5),
//	))
//
// Nothing in this package retries. Each dispatch still results in at most
// one request.
package middleware

import (
	"context"

	"github.com/singlebase/singlebase-go/core"
)

// callInfo is the metadata most middleware log or match on.
type callInfo struct {
	service    core.Service
	action     string
	collection string
}

func infoOf(call *core.Call) callInfo {
	if call == nil || call.Envelope == nil {
		return callInfo{action: "unknown"}
	}
	return callInfo{
		service:    call.Envelope.Service,
		action:     call.Envelope.Action,
		collection: call.Envelope.Collection,
	}
}

// ForServices applies mw only to calls addressed to one of services.
func ForServices(services []core.Service, mw core.Middleware) core.Middleware {
	set := make(map[core.Service]bool, len(services))
	for _, s := range services {
		set[s] = true
	}

	return func(next core.SendFunc) core.SendFunc {
		wrapped := mw(next)
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			if set[infoOf(call).service] {
				return wrapped(ctx, call)
			}
			return next(ctx, call)
		}
	}
}

// ExceptServices applies mw to every call except those addressed to services.
func ExceptServices(services []core.Service, mw core.Middleware) core.Middleware {
	set := make(map[core.Service]bool, len(services))
	for _, s := range services {
		set[s] = true
	}

	return func(next core.SendFunc) core.SendFunc {
		wrapped := mw(next)
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			if !set[infoOf(call).service] {
				return wrapped(ctx, call)
			}
			return next(ctx, call)
		}
	}
}
