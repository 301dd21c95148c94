package core

import "time"

// TelemetryHook receives notifications about request lifecycle events.
// Implementations can use this for logging, metrics, tracing, etc.
// Hooks are called synchronously on the dispatching goroutine and must be
// safe for concurrent use.
//
// # Security Considerations
//
// Events NEVER include the access key, the payload, or returned records.
// Only operational metadata is exposed (service, action, collection, timing,
// status and error classification), so events can be logged or exported
// without leaking tenant data. Keep it that way when adding fields.
type TelemetryHook interface {
	// OnRequestStart is called before the request is sent.
	OnRequestStart(e RequestStartEvent)

	// OnRequestEnd is called once the Result is known.
	OnRequestEnd(e RequestEndEvent)
}

// RequestStartEvent contains metadata about a starting request.
type RequestStartEvent struct {
	RequestID  string    // Unique per dispatch; pairs start and end events
	Service    Service   // Service tag of the envelope
	Action     string    // Action name
	Collection string    // Collection for db calls, empty otherwise
	Async      bool      // True for the non-blocking calling form
	Start      time.Time // When the request started
}

// RequestEndEvent contains metadata about a completed request.
type RequestEndEvent struct {
	RequestID  string
	Service    Service
	Action     string
	Collection string
	Async      bool
	Start      time.Time
	End        time.Time
	StatusCode int       // 0 when no response was received
	OK         bool      // Result discriminator
	ErrorKind  ErrorKind // Empty on success
	ErrorCode  string    // Empty on success
}

// Duration returns the elapsed time for the request.
func (e RequestEndEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// NoopTelemetryHook is a no-op implementation of TelemetryHook.
// Use this as a default when no telemetry is configured.
type NoopTelemetryHook struct{}

// OnRequestStart does nothing.
func (NoopTelemetryHook) OnRequestStart(RequestStartEvent) {}

// OnRequestEnd does nothing.
func (NoopTelemetryHook) OnRequestEnd(RequestEndEvent) {}

// Compile-time check that NoopTelemetryHook implements TelemetryHook.
var _ TelemetryHook = NoopTelemetryHook{}
