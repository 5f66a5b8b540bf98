package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// envelope is the uniform response shape.
type envelope struct {
	Status int `json:"status"`
	Value  any `json:"value"`
}

// respond writes the envelope with the HTTP status mirroring the field.
func respond(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: status, Value: value})
}

// statusOf maps error kinds to HTTP statuses.
func statusOf(err error) int {
	switch types.KindOf(err) {
	case types.ErrAuthMissing:
		return http.StatusUnauthorized
	case types.ErrAuthRefused:
		return http.StatusForbidden
	case types.ErrMalformedID, types.ErrUnsupported:
		return http.StatusUnsupportedMediaType
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrInvalid, types.ErrTransient:
		return http.StatusBadRequest
	case types.ErrNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// fail writes an error envelope. Infrastructure failures are reported as a
// transmission problem without leaking internals.
func fail(w http.ResponseWriter, err error) {
	msg := err.Error()
	if types.KindOf(err) == types.ErrTransient && !strings.Contains(msg, "unable to transmit") {
		msg = "unable to transmit the request, try again later"
	}
	respond(w, statusOf(err), msg)
}

// principal authenticates the request's basic credentials.
func (s *Server) principal(r *http.Request) (*auth.Principal, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, types.E(types.ErrAuthMissing, "authenticate to access this resource")
	}
	return s.auth.Authenticate(username, password)
}

// require authenticates and checks a rule, answering the request on failure.
func (s *Server) require(w http.ResponseWriter, r *http.Request, rule auth.Rule) (*auth.Principal, bool) {
	p, err := s.principal(r)
	if err != nil {
		fail(w, err)
		return nil, false
	}
	if err := auth.Require(p, rule); err != nil {
		fail(w, err)
		return nil, false
	}
	return p, true
}

// uuidParam extracts and checks a UUID path parameter.
func uuidParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if !types.ValidUUID(v) {
		return "", types.E(types.ErrMalformedID, "path parameter "+name+" is not a valid uuid")
	}
	return v, nil
}

// decodeJSON reads a JSON request body. Anything unreadable answers as an
// unsupported payload.
func decodeJSON(r *http.Request, into any) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return types.E(types.ErrUnsupported, "request body must be application/json")
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return types.Wrap(types.ErrUnsupported, "parse request body", err)
	}
	return nil
}

// parseQuery builds a storage query from the recognized request parameters:
// spec (JSON filter), skip, limit, sort (JSON [[field, direction], ...]),
// load_fields. Unknown parameters are ignored.
func parseQuery(r *http.Request) (storage.Query, bool, error) {
	var q storage.Query
	values := r.URL.Query()

	if raw := values.Get("spec"); raw != "" {
		var spec storage.Spec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return q, false, types.Wrap(types.ErrInvalid, "parse spec parameter", err)
		}
		q.Spec = spec
	}
	if raw := values.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, false, types.E(types.ErrInvalid, "skip parameter must be a non-negative integer")
		}
		q.Skip = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, false, types.E(types.ErrInvalid, "limit parameter must be a non-negative integer")
		}
		q.Limit = n
	}
	if raw := values.Get("sort"); raw != "" {
		var pairs [][2]any
		if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
			return q, false, types.Wrap(types.ErrInvalid, "parse sort parameter", err)
		}
		for _, pair := range pairs {
			field, _ := pair[0].(string)
			if field == "" {
				return q, false, types.E(types.ErrInvalid, "sort fields must be strings")
			}
			desc := false
			if dir, ok := pair[1].(float64); ok && dir < 0 {
				desc = true
			}
			q.Sort = append(q.Sort, storage.SortKey{Field: field, Desc: desc})
		}
	}

	loadFields := values.Get("load_fields") == "true"
	return q, loadFields, nil
}

// specParam reads the optional spec filter for count endpoints.
func specParam(r *http.Request) (storage.Spec, error) {
	raw := r.URL.Query().Get("spec")
	if raw == "" {
		return nil, nil
	}
	var spec storage.Spec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, types.Wrap(types.ErrInvalid, "parse spec parameter", err)
	}
	return spec, nil
}
