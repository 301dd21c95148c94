package telemetry

import (
	"go.uber.org/zap"

	"github.com/singlebase/singlebase-go/core"
)

// ZapHook logs request lifecycle events.
type ZapHook struct {
	logger *zap.Logger
}

// NewZapHook creates a hook that logs starts at debug level, successes at
// info and failures at warn.
func NewZapHook(logger *zap.Logger) *ZapHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapHook{logger: logger.Named("singlebase")}
}

// OnRequestStart logs the start of a request.
func (h *ZapHook) OnRequestStart(e core.RequestStartEvent) {
	h.logger.Debug("request start", h.base(e.RequestID, e.Service, e.Action, e.Collection, e.Async)...)
}

// OnRequestEnd logs the outcome of a request.
func (h *ZapHook) OnRequestEnd(e core.RequestEndEvent) {
	fields := append(h.base(e.RequestID, e.Service, e.Action, e.Collection, e.Async),
		zap.String("outcome", Outcome(e)),
		zap.Int("status", e.StatusCode),
		zap.Duration("duration", e.Duration()),
	)
	if e.OK {
		h.logger.Info("request done", fields...)
		return
	}
	fields = append(fields,
		zap.String("error_kind", string(e.ErrorKind)),
		zap.String("error_code", e.ErrorCode),
	)
	h.logger.Warn("request failed", fields...)
}

func (h *ZapHook) base(id string, svc core.Service, action, collection string, async bool) []zap.Field {
	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("service", string(svc)),
		zap.String("action", action),
	}
	if collection != "" {
		fields = append(fields, zap.String("collection", collection))
	}
	if async {
		fields = append(fields, zap.Bool("async", true))
	}
	return fields
}

var _ core.TelemetryHook = (*ZapHook)(nil)
