package core

import (
	"encoding/json"
	"strings"
)

// Envelope is the canonical request structure sent to the backend.
// An Envelope is not mutated once built and may be shared across goroutines.
type Envelope struct {
	Service    Service `json:"service"`
	Action     string  `json:"action"`
	Collection string  `json:"collection,omitempty"`
	Payload    Payload `json:"payload"`

	// raw is set by NewRawEnvelope; the wire body is then raw itself.
	raw Payload
}

// BuildEnvelope validates its inputs and returns a populated Envelope.
//
// service and action are required. collection is required for ServiceDB and
// ignored for every other service. A nil payload becomes an empty one. The
// payload is copied shallowly and passed through untouched; action legality
// and payload shape are the backend's concern.
func BuildEnvelope(service Service, action, collection string, payload Payload) (*Envelope, error) {
	if strings.TrimSpace(string(service)) == "" {
		return nil, ErrServiceRequired
	}
	if strings.TrimSpace(action) == "" {
		return nil, ErrActionRequired
	}

	env := &Envelope{
		Service: service,
		Action:  action,
		Payload: payload.Clone(),
	}
	if service == ServiceDB {
		if strings.TrimSpace(collection) == "" {
			return nil, ErrCollectionRequired
		}
		env.Collection = collection
	}
	return env, nil
}

// NewRawEnvelope wraps a caller-specified payload that is sent verbatim.
// It is the escape hatch for backend features the facade does not model.
// The payload must carry a non-empty string "action".
func NewRawEnvelope(payload Payload) (*Envelope, error) {
	action, _ := payload["action"].(string)
	if strings.TrimSpace(action) == "" {
		return nil, ErrActionRequired
	}
	service, _ := payload["service"].(string)
	collection, _ := payload["collection"].(string)

	raw := payload.Clone()
	return &Envelope{
		Service:    Service(service),
		Action:     action,
		Collection: collection,
		Payload:    raw,
		raw:        raw,
	}, nil
}

// IsRaw reports whether the envelope was built by NewRawEnvelope.
func (e *Envelope) IsRaw() bool {
	return e.raw != nil
}

// Encode returns the JSON wire body. Payload values that encoding/json cannot
// represent are reported as an invalid argument.
func (e *Envelope) Encode() ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if e.raw != nil {
		body, err = json.Marshal(e.raw)
	} else {
		body, err = json.Marshal(e)
	}
	if err != nil {
		return nil, &ArgumentError{Field: "payload", Reason: "not JSON-encodable", Err: err}
	}
	return body, nil
}

// Name returns a short "service.action" label used by logs and telemetry.
func (e *Envelope) Name() string {
	if e.Service == "" {
		return e.Action
	}
	return string(e.Service) + "." + e.Action
}
