package fakebackend

import (
	"net/http"
	"reflect"
	"time"
)

const archivedField = "_archived"

func (s *Server) handleDB(env Envelope) (any, map[string]any, *apiError) {
	if env.Collection == "" {
		return nil, nil, newAPIError(http.StatusBadRequest, "COLLECTION_REQUIRED", "collection is required for db actions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches, _ := env.Payload["matches"].(map[string]any)
	records := s.collections[env.Collection]

	switch env.Action {
	case "insert":
		docs, err := documents(env.Payload["data"])
		if err != nil {
			return nil, nil, err
		}
		inserted := make([]any, 0, len(docs))
		for _, d := range docs {
			rec := s.newRecord(d)
			records = append(records, rec)
			inserted = append(inserted, copyMap(rec))
		}
		s.collections[env.Collection] = records
		return inserted, map[string]any{"inserted": len(inserted)}, nil

	case "fetch":
		includeArchived, _ := env.Payload["archived"].(bool)
		var out []any
		for _, r := range records {
			if isArchived(r) != includeArchived || !matchesAll(r, matches) {
				continue
			}
			out = append(out, copyMap(r))
		}
		total := len(out)
		if limit, ok := intOf(env.Payload["limit"]); ok && limit >= 0 && limit < len(out) {
			out = out[:limit]
		}
		if out == nil {
			out = []any{}
		}
		return out, map[string]any{"total": total}, nil

	case "count":
		n := 0
		for _, r := range records {
			if !isArchived(r) && matchesAll(r, matches) {
				n++
			}
		}
		return map[string]any{"count": n}, map[string]any{"total": n}, nil

	case "update", "upsert":
		patch, _ := env.Payload["data"].(map[string]any)
		if patch == nil {
			return nil, nil, newAPIError(http.StatusBadRequest, "DATA_REQUIRED", "data object is required for %s", env.Action)
		}
		var updated []any
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, r := range records {
			if isArchived(r) || !matchesAll(r, matches) {
				continue
			}
			for k, v := range patch {
				if k != "_key" {
					r[k] = v
				}
			}
			r["_modified_at"] = now
			updated = append(updated, copyMap(r))
		}
		if len(updated) == 0 && env.Action == "upsert" {
			doc := copyMap(matches)
			for k, v := range patch {
				doc[k] = v
			}
			rec := s.newRecord(doc)
			s.collections[env.Collection] = append(records, rec)
			return []any{copyMap(rec)}, map[string]any{"inserted": 1, "updated": 0}, nil
		}
		if updated == nil {
			updated = []any{}
		}
		return updated, map[string]any{"updated": len(updated)}, nil

	case "delete":
		if len(matches) == 0 {
			return nil, nil, newAPIError(http.StatusBadRequest, "MATCHES_REQUIRED", "refusing to delete without matches")
		}
		kept := records[:0:0]
		deleted := 0
		for _, r := range records {
			if matchesAll(r, matches) {
				deleted++
				continue
			}
			kept = append(kept, r)
		}
		s.collections[env.Collection] = kept
		return map[string]any{"deleted": deleted}, nil, nil

	case "archive", "restore":
		archive := env.Action == "archive"
		n := 0
		for _, r := range records {
			if isArchived(r) == archive || !matchesAll(r, matches) {
				continue
			}
			if archive {
				r[archivedField] = true
			} else {
				delete(r, archivedField)
			}
			n++
		}
		return map[string]any{env.Action + "d": n}, nil, nil

	default:
		return nil, nil, newAPIError(http.StatusBadRequest, "UNKNOWN_ACTION", "unknown db action %q", env.Action)
	}
}

// documents accepts a single object or an array of objects.
func documents(v any) ([]map[string]any, *apiError) {
	switch d := v.(type) {
	case map[string]any:
		return []map[string]any{d}, nil
	case []any:
		out := make([]map[string]any, 0, len(d))
		for _, item := range d {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "INVALID_DATA", "data items must be objects")
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, newAPIError(http.StatusBadRequest, "DATA_REQUIRED", "data must be an object or an array of objects")
	}
}

func matchesAll(r, matches map[string]any) bool {
	for k, want := range matches {
		if !reflect.DeepEqual(r[k], want) {
			return false
		}
	}
	return true
}

func isArchived(r map[string]any) bool {
	v, _ := r[archivedField].(bool)
	return v
}

func intOf(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
