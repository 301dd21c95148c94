package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a failed dispatch.
type ErrorKind string

const (
	// KindInvalidArgument marks caller mistakes detected before any I/O.
	// These are returned as Go errors, never inside a Result.
	KindInvalidArgument ErrorKind = "InvalidArgument"
	// KindTransport marks connection, timeout, TLS and malformed-response failures.
	KindTransport ErrorKind = "TransportError"
	// KindBackend marks domain failures reported by the backend.
	KindBackend ErrorKind = "BackendError"
)

// Sentinel errors for classification with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTransport       = errors.New("transport error")
	ErrBackend         = errors.New("backend error")
)

// Validation errors with actionable guidance.
var (
	ErrAPIURLRequired     = &ArgumentError{Field: "api_url", Reason: "required: pass Config{APIURL: ...} or set SINGLEBASE_API_URL"}
	ErrAPIKeyRequired     = &ArgumentError{Field: "api_key", Reason: "required: pass Config{APIKey: ...} or set SINGLEBASE_API_KEY"}
	ErrServiceRequired    = &ArgumentError{Field: "service", Reason: "required: use one of db, auth, storage, genai, vectordb"}
	ErrActionRequired     = &ArgumentError{Field: "action", Reason: "required: e.g. \"fetch\", \"insert\", \"signin\""}
	ErrCollectionRequired = &ArgumentError{Field: "collection", Reason: "required for db actions: e.g. client.DB(ctx, \"fetch\", \"articles\", nil)"}
)

// ArgumentError describes a malformed call. It wraps ErrInvalidArgument.
type ArgumentError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid argument %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidArgument and the underlying cause, if any.
func (e *ArgumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArgument, e.Err}
	}
	return []error{ErrInvalidArgument}
}

// IsInvalidArgument reports whether err is a caller mistake.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// Transport error codes carried in ResultError.Code when Kind is KindTransport.
const (
	CodeTimeout           = "TIMEOUT"
	CodeCanceled          = "CANCELED"
	CodeConnectionRefused = "CONNECTION_REFUSED"
	CodeDNS               = "DNS"
	CodeTLS               = "TLS"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeTransport         = "TRANSPORT_ERROR"
)

// Backend error codes derived from the HTTP status when the body carries none.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeServer       = "SERVER_ERROR"
	CodeUnknown      = "UNKNOWN"
)
