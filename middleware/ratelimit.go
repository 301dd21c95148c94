package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/singlebase/singlebase-go/core"
)

// RateLimit creates middleware that waits for a token from limiter before
// each request. A context that ends while waiting fails the call with a
// transport error; nothing is sent.
func RateLimit(limiter *rate.Limiter) core.Middleware {
	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next(ctx, call)
		}
	}
}

// RateLimitPerSecond creates a token bucket allowing perSecond requests with
// the given burst.
func RateLimitPerSecond(perSecond float64, burst int) core.Middleware {
	if burst < 1 {
		burst = 1
	}
	return RateLimit(rate.NewLimiter(rate.Limit(perSecond), burst))
}
