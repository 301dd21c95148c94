package core

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of one dispatch. It has exactly two implementations,
// *ResultOK and *ResultError; callers branch on OK() or use a type switch:
//
//	switch r := res.(type) {
//	case *core.ResultOK:
//	    fmt.Println(len(r.Data))
//	case *core.ResultError:
//	    fmt.Println(r.Code, r.Message)
//	}
type Result interface {
	// OK reports whether the backend accepted the request.
	OK() bool
	// Status returns the HTTP status code, or 0 if no response was received.
	Status() int

	result()
}

// ResultOK carries the records returned by a successful call.
type ResultOK struct {
	// Data holds zero or more records. It is never nil.
	Data []Record
	// Meta holds backend-supplied metadata such as pagination; may be nil.
	Meta       Record
	StatusCode int
}

// OK always returns true.
func (r *ResultOK) OK() bool { return true }

// Status returns the HTTP status code.
func (r *ResultOK) Status() int { return r.StatusCode }

func (*ResultOK) result() {}

// First returns the first record, if any.
func (r *ResultOK) First() (Record, bool) {
	if len(r.Data) == 0 {
		return nil, false
	}
	return r.Data[0], true
}

// Decode re-encodes Data into v, which is usually a pointer to a slice of
// structs with json tags.
func (r *ResultOK) Decode(v any) error {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ResultError describes a failed call. It implements error so it can be
// returned or wrapped directly.
type ResultError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	// Cause is the underlying transport error, nil for backend errors.
	Cause error
}

// OK always returns false.
func (r *ResultError) OK() bool { return false }

// Status returns the HTTP status code, or 0 for failures before a response.
func (r *ResultError) Status() int { return r.StatusCode }

func (*ResultError) result() {}

// Error implements the error interface.
func (r *ResultError) Error() string {
	if r.StatusCode != 0 {
		return fmt.Sprintf("singlebase: %s: %s (status=%d, code=%s)", r.Kind, r.Message, r.StatusCode, r.Code)
	}
	return fmt.Sprintf("singlebase: %s: %s (code=%s)", r.Kind, r.Message, r.Code)
}

// Unwrap exposes the kind sentinel and the underlying cause to errors.Is/As.
func (r *ResultError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch r.Kind {
	case KindTransport:
		errs = append(errs, ErrTransport)
	case KindBackend:
		errs = append(errs, ErrBackend)
	}
	if r.Cause != nil {
		errs = append(errs, r.Cause)
	}
	return errs
}

// AsError returns res as a *ResultError when it is one.
func AsError(res Result) (*ResultError, bool) {
	re, ok := res.(*ResultError)
	return re, ok
}

// Err returns nil for a successful result and the *ResultError otherwise.
// It is convenient when a caller prefers Go error flow.
func Err(res Result) error {
	if re, ok := res.(*ResultError); ok {
		return re
	}
	return nil
}

// Compile-time checks.
var (
	_ Result = (*ResultOK)(nil)
	_ Result = (*ResultError)(nil)
	_ error  = (*ResultError)(nil)
)
