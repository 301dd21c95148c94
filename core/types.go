package core

// Service identifies one of the backend's functional areas.
type Service string

const (
	ServiceDB       Service = "db"
	ServiceAuth     Service = "auth"
	ServiceStorage  Service = "storage"
	ServiceGenAI    Service = "genai"
	ServiceVectorDB Service = "vectordb"
)

// Services returns the services the facade knows about, in a stable order.
func Services() []Service {
	return []Service{ServiceDB, ServiceAuth, ServiceStorage, ServiceGenAI, ServiceVectorDB}
}

// String implements fmt.Stringer.
func (s Service) String() string {
	return string(s)
}

// Known actions. The backend owns the vocabulary; these constants exist only
// so call sites do not repeat string literals. Any other action string is
// forwarded unchanged.
const (
	ActionFetch     = "fetch"
	ActionInsert    = "insert"
	ActionUpdate    = "update"
	ActionUpsert    = "upsert"
	ActionCount     = "count"
	ActionDelete    = "delete"
	ActionArchive   = "archive"
	ActionRestore   = "restore"
	ActionSignin    = "signin"
	ActionNonce     = "nonce"
	ActionGet       = "get"
	ActionConvertMD = "convert_to_md"
	ActionSummarize = "summarize"
	ActionGenText   = "gentext"
	ActionQnA       = "qna"
)

// Payload is the free-form body of a request. Values must be encodable with
// encoding/json: strings, numbers, booleans, nil, nested maps and slices, or
// any type implementing json.Marshaler (time.Time included).
type Payload map[string]any

// Clone returns a shallow copy of the payload. A nil payload clones to an
// empty, non-nil one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Record is a single result row returned by the backend.
type Record map[string]any

// String returns the value at key if it is a string.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Key returns the record's generated key (the "_key" field), if any.
func (r Record) Key() string {
	s, _ := r.String("_key")
	return s
}
