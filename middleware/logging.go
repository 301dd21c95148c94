package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/singlebase/singlebase-go/core"
)

// Logging creates middleware that logs each round trip.
// Successful calls are logged at debug level, failures and HTTP error
// statuses at warn. Payloads, response bodies and credentials are never logged.
func Logging(logger *zap.Logger) core.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next core.SendFunc) core.SendFunc {
		return func(ctx context.Context, call *core.Call) (*core.RawResponse, error) {
			info := infoOf(call)
			fields := []zap.Field{
				zap.String("service", string(info.service)),
				zap.String("action", info.action),
			}
			if info.collection != "" {
				fields = append(fields, zap.String("collection", info.collection))
			}
			if id, ok := core.RequestIDFromContext(ctx); ok {
				fields = append(fields, zap.String("request_id", id))
			}

			start := time.Now()
			resp, err := next(ctx, call)
			fields = append(fields, zap.Duration("duration", time.Since(start)))

			switch {
			case err != nil:
				logger.Warn("singlebase request failed", append(fields, zap.Error(err))...)
			case resp == nil:
				logger.Warn("singlebase request returned no response", fields...)
			case resp.StatusCode >= 400:
				logger.Warn("singlebase request returned error status", append(fields, zap.Int("status", resp.StatusCode))...)
			default:
				logger.Debug("singlebase request", append(fields, zap.Int("status", resp.StatusCode))...)
			}

			return resp, err
		}
	}
}
