package middleware

import (
	"context"
	"time"

	"github.com/singlebase/singlebase-go/core"
)

// Timeout creates middleware that bounds each round trip by d.
// It composes with the client timeout; whichever is shorter wins.
func Timeout(d time.Duration) core.Middleware {
	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			if d <= 0 {
				return next(ctx, call)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, call)
		}
	}
}
