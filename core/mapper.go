package core

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ResponseFields names the wire fields the mapper reads. The backend owns
// these names; swap them here without touching the rest of the client.
type ResponseFields struct {
	OK      string
	Data    string
	Meta    string
	Error   string
	Code    string
	Message string
}

// DefaultResponseFields returns the field names used by the Singlebase API.
func DefaultResponseFields() ResponseFields {
	return ResponseFields{
		OK:      "ok",
		Data:    "data",
		Meta:    "meta",
		Error:   "error",
		Code:    "code",
		Message: "message",
	}
}

// Mapper turns raw responses and transport failures into Results.
// A Mapper holds no mutable state: mapping the same input twice yields
// equal Results.
type Mapper struct {
	Fields ResponseFields
	// DecodeTimestamps converts RFC 3339 strings in records and meta
	// into time.Time values.
	DecodeTimestamps bool
}

// NewMapper returns a Mapper using the default response fields.
func NewMapper() Mapper {
	return Mapper{Fields: DefaultResponseFields()}
}

// Map interprets a raw HTTP response.
func (m Mapper) Map(raw *RawResponse) Result {
	if raw == nil {
		return &ResultError{Kind: KindTransport, Code: CodeMalformedResponse, Message: "no response"}
	}

	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw.Body))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		msg := "response body is not a JSON object"
		if len(bytes.TrimSpace(raw.Body)) == 0 {
			msg = "empty response body"
		}
		return &ResultError{
			Kind:       KindTransport,
			Code:       CodeMalformedResponse,
			Message:    msg,
			StatusCode: raw.StatusCode,
			Cause:      err,
		}
	}
	body = normalizeNumbers(body).(map[string]any)

	if m.succeeded(raw.StatusCode, body) {
		ok := &ResultOK{
			Data:       toRecords(body[m.fields().Data]),
			Meta:       toRecord(body[m.fields().Meta]),
			StatusCode: raw.StatusCode,
		}
		if m.DecodeTimestamps {
			for i := range ok.Data {
				ok.Data[i] = decodeTimestamps(ok.Data[i])
			}
			if ok.Meta != nil {
				ok.Meta = decodeTimestamps(ok.Meta)
			}
		}
		return ok
	}

	code, message := m.errorDetails(body)
	if code == "" {
		code = codeForStatus(raw.StatusCode)
	}
	if message == "" {
		message = http.StatusText(raw.StatusCode)
	}
	if message == "" {
		message = "request failed"
	}
	return &ResultError{
		Kind:       KindBackend,
		Code:       code,
		Message:    message,
		StatusCode: raw.StatusCode,
	}
}

// MapTransportError converts a failure that prevented a usable response.
func (m Mapper) MapTransportError(err error) Result {
	if err == nil {
		err = errors.New("unknown transport failure")
	}
	return &ResultError{
		Kind:    KindTransport,
		Code:    classifyNetworkError(err),
		Message: err.Error(),
		Cause:   err,
	}
}

func (m Mapper) fields() ResponseFields {
	f := m.Fields
	def := DefaultResponseFields()
	if f.OK == "" {
		f.OK = def.OK
	}
	if f.Data == "" {
		f.Data = def.Data
	}
	if f.Meta == "" {
		f.Meta = def.Meta
	}
	if f.Error == "" {
		f.Error = def.Error
	}
	if f.Code == "" {
		f.Code = def.Code
	}
	if f.Message == "" {
		f.Message = def.Message
	}
	return f
}

// succeeded treats a boolean ok field as authoritative and falls back to
// the HTTP status when the field is absent.
func (m Mapper) succeeded(status int, body map[string]any) bool {
	if v, ok := body[m.fields().OK].(bool); ok {
		return v
	}
	return status >= 200 && status < 300
}

func (m Mapper) errorDetails(body map[string]any) (code, message string) {
	f := m.fields()
	code = stringOf(body[f.Code])
	message = stringOf(body[f.Message])

	switch e := body[f.Error].(type) {
	case map[string]any:
		if code == "" {
			code = stringOf(e[f.Code])
		}
		if message == "" {
			message = stringOf(e[f.Message])
		}
	case string:
		if message == "" {
			message = e
		}
	}
	return code, message
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// toRecords normalizes data into a non-nil sequence of records.
func toRecords(v any) []Record {
	switch d := v.(type) {
	case nil:
		return []Record{}
	case []any:
		out := make([]Record, 0, len(d))
		for _, item := range d {
			out = append(out, wrapRecord(item))
		}
		return out
	default:
		return []Record{wrapRecord(d)}
	}
}

func wrapRecord(v any) Record {
	if m, ok := v.(map[string]any); ok {
		return Record(m)
	}
	return Record{"value": v}
}

func toRecord(v any) Record {
	if m, ok := v.(map[string]any); ok {
		return Record(m)
	}
	return nil
}

// normalizeNumbers turns json.Number into int64 when integral, float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func decodeTimestamps(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = decodeTimestampValue(v)
	}
	return out
}

func decodeTimestampValue(v any) any {
	switch t := v.(type) {
	case string:
		if ts, ok := parseTimestamp(t); ok {
			return ts
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = decodeTimestampValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = decodeTimestampValue(item)
		}
		return out
	default:
		return v
	}
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
// Plain dates are left as strings.
func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02T15:04:05Z") || s[4] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return CodeBadRequest
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeServer
	default:
		return CodeUnknown
	}
}

// classifyNetworkError maps a transport failure to a stable code.
func classifyNetworkError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CodeConnectionRefused
	}

	var (
		certErr      *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		recordHdrErr tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) || errors.As(err, &recordHdrErr) {
		return CodeTLS
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"):
		return CodeTimeout
	case strings.Contains(lower, "connection refused"):
		return CodeConnectionRefused
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate"):
		return CodeTLS
	}
	return CodeTransport
}
