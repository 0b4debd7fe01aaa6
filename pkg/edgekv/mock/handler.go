package mock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/StratoEdge/edgekv_sdk_go/pkg/edgekv"
)

// Request limits enforced by the hosted API. The client transmits
// whatever it is given; these bounds are checked server-side only.
const (
	minListLimit      = 10
	maxListLimit      = 1000
	maxBulkDeleteKeys = 10000
)

// Envelope error codes mirroring the hosted API.
const (
	codeAuthError         = 10000
	codeKeyNotFound       = 10009
	codeMalformedRequest  = 10012
	codeNamespaceNotFound = 10013
	codeInvalidLimit      = 10022
	codeInvalidCursor     = 10038
	codeTooManyKeys       = 10040
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handler)

// WithAuthToken makes the handler reject requests whose bearer token
// differs. An empty token disables the check.
func WithAuthToken(token string) HandlerOption {
	return func(h *handler) {
		h.token = token
	}
}

// WithHandlerLogger attaches a logger for request tracing.
func WithHandlerLogger(l hclog.Logger) HandlerOption {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type handler struct {
	store  *Mock
	token  string
	logger hclog.Logger
}

// NewHandler serves the EdgeKV REST surface backed by m: key listing,
// raw value reads and writes, and bulk deletes, with the envelope
// shapes, error codes and request limits of the hosted API. Point a
// client at it with edgekv.WithBaseURL.
func NewHandler(m *Mock, opts ...HandlerOption) http.Handler {
	h := &handler{store: m, logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(h.trace)
	r.Use(h.requireAuth)
	r.Route("/accounts/{accountID}/storage/kv/namespaces/{namespaceID}", func(r chi.Router) {
		r.Get("/keys", h.listKeys)
		r.Get("/values/*", h.getValue)
		r.Put("/values/*", h.putValue)
		r.Delete("/bulk", h.deleteBulk)
	})
	return r
}

func (h *handler) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("kv request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (h *handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			h.writeError(w, http.StatusUnauthorized, codeAuthError, "authentication error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) listKeys(w http.ResponseWriter, r *http.Request) {
	namespaceID := chi.URLParam(r, "namespaceID")
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minListLimit || parsed > maxListLimit {
			h.writeError(w, http.StatusBadRequest, codeInvalidLimit,
				fmt.Sprintf("limit must be between %d and %d", minListLimit, maxListLimit))
			return
		}
		limit = parsed
	}

	page, next, err := h.store.ListPage(namespaceID, limit, query.Get("cursor"), query.Get("prefix"))
	switch {
	case errors.Is(err, ErrNamespaceNotFound):
		h.writeError(w, http.StatusNotFound, codeNamespaceNotFound, "namespace not found")
		return
	case errors.Is(err, ErrBadCursor):
		h.writeError(w, http.StatusBadRequest, codeInvalidCursor, "invalid cursor")
		return
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, codeMalformedRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, edgekv.ListKeysResult{
		Response: okResponse(),
		Result:   page,
		ResultInfo: &edgekv.ListKeysInfo{
			Count:  len(page),
			Cursor: next,
		},
	})
}

func (h *handler) getValue(w http.ResponseWriter, r *http.Request) {
	namespaceID := chi.URLParam(r, "namespaceID")
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "malformed key")
		return
	}

	value, err := h.store.Get(namespaceID, key)
	switch {
	case errors.Is(err, ErrNamespaceNotFound):
		h.writeError(w, http.StatusNotFound, codeNamespaceNotFound, "namespace not found")
		return
	case errors.Is(err, ErrKeyNotFound):
		h.writeError(w, http.StatusNotFound, codeKeyNotFound, "key not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, value)
}

func (h *handler) putValue(w http.ResponseWriter, r *http.Request) {
	namespaceID := chi.URLParam(r, "namespaceID")
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || key == "" {
		h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "malformed key")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "read request body")
		return
	}

	var expiresAt time.Time
	query := r.URL.Query()
	if raw := query.Get("expiration_ttl"); raw != "" {
		ttl, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ttl < 0 {
			h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "invalid expiration_ttl")
			return
		}
		expiresAt = h.store.clock().Add(time.Duration(ttl) * time.Second)
	} else if raw := query.Get("expiration"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts < 0 {
			h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "invalid expiration")
			return
		}
		expiresAt = time.Unix(ts, 0).UTC()
	}

	if err := h.store.Set(namespaceID, key, string(body), expiresAt); err != nil {
		if errors.Is(err, ErrNamespaceNotFound) {
			h.writeError(w, http.StatusNotFound, codeNamespaceNotFound, "namespace not found")
			return
		}
		h.writeError(w, http.StatusBadRequest, codeMalformedRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, edgekv.SetResult{
		Response: okResponse(),
		Result:   json.RawMessage("null"),
	})
}

func (h *handler) deleteBulk(w http.ResponseWriter, r *http.Request) {
	namespaceID := chi.URLParam(r, "namespaceID")

	var keys []string
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		h.writeError(w, http.StatusBadRequest, codeMalformedRequest, "request body must be a JSON array of keys")
		return
	}
	if len(keys) > maxBulkDeleteKeys {
		h.writeError(w, http.StatusBadRequest, codeTooManyKeys,
			fmt.Sprintf("at most %d keys per bulk delete", maxBulkDeleteKeys))
		return
	}

	deleted, err := h.store.Delete(namespaceID, keys)
	if err != nil {
		if errors.Is(err, ErrNamespaceNotFound) {
			h.writeError(w, http.StatusNotFound, codeNamespaceNotFound, "namespace not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, codeMalformedRequest, err.Error())
		return
	}

	result, _ := json.Marshal(map[string]int{"count": deleted})
	writeJSON(w, http.StatusOK, edgekv.DeleteResult{
		Response: okResponse(),
		Result:   result,
	})
}

func (h *handler) writeError(w http.ResponseWriter, status, code int, message string) {
	h.logger.Debug("kv error", "status", status, "code", code, "message", message)
	writeJSON(w, status, struct {
		edgekv.Response
		Result json.RawMessage `json:"result"`
	}{
		Response: edgekv.Response{
			Success:  false,
			Errors:   []edgekv.ResponseInfo{{Code: code, Message: message}},
			Messages: []edgekv.ResponseInfo{},
		},
		Result: json.RawMessage("null"),
	})
}

func okResponse() edgekv.Response {
	return edgekv.Response{
		Success:  true,
		Errors:   []edgekv.ResponseInfo{},
		Messages: []edgekv.ResponseInfo{},
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
