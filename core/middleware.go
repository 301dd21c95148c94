package core

import "context"

// SendFunc is the function signature middleware wraps.
type SendFunc func(ctx context.Context, call *Call) (*RawResponse, error)

// Middleware wraps a SendFunc to add behavior before and/or after the round trip.
// Middleware must not retry: each call results in at most one request.
type Middleware func(next SendFunc) SendFunc

// Chain combines multiple middleware into a single middleware.
// Middleware are executed in the order provided (first middleware is outermost).
func Chain(middlewares ...Middleware) Middleware {
	return func(next SendFunc) SendFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] != nil {
				next = middlewares[i](next)
			}
		}
		return next
	}
}
