package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fridgekeep/fridgekeep/pkg/types"
	"github.com/fridgekeep/fridgekeep/server/internal/files"
	"github.com/fridgekeep/fridgekeep/server/internal/store"
	"github.com/fridgekeep/fridgekeep/server/internal/sweeper"
)

// maxBodyBytes caps request bodies; registrations are a few hundred bytes.
const maxBodyBytes = 64 << 10

const resourcesPrefix = "/api/v1/resources/"

// defaultActivityLimit is the number of events returned when ?limit is absent.
const defaultActivityLimit = 10

// ActivityFeed supplies recent events, newest first.
type ActivityFeed interface {
	Recent(limit int) []types.Activity
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	sweeper *sweeper.Sweeper
	remover files.Remover
	feed    ActivityFeed
	mux     *http.ServeMux
}

// New creates a Handler and registers all routes. remover may be nil, in which
// case purge requests only drop metadata. A nil feed serves an empty activity list.
func New(st *store.Store, sw *sweeper.Sweeper, remover files.Remover, feed ActivityFeed) http.Handler {
	h := &Handler{store: st, sweeper: sw, remover: remover, feed: feed, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/resources", h.resources)
	h.mux.HandleFunc(resourcesPrefix, h.resource) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/evict", h.evict)
	h.mux.HandleFunc("/api/v1/activity", h.activity)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, types.HealthResponse{State: "ok", ResourceCount: h.store.Count()})
}

// resources serves GET (list) and POST (register) on /api/v1/resources.
func (h *Handler) resources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, BuildList(h.store, r.URL.Query().Get("owner")))
	case http.MethodPost:
		h.register(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.store.Register(req.ID, req.OwnerID, req.Location)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	slog.Debug("api: resource registered", "id", m.ID, "owner", m.OwnerID, "location", m.Location)
	jsonResp(w, http.StatusCreated, ToResource(m))
}

// resource serves GET and DELETE on /api/v1/resources/{id}.
func (h *Handler) resource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, resourcesPrefix)
	if id == "" {
		// Bare /api/v1/resources/ behaves like the collection.
		h.resources(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		m, ok := h.store.Get(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "resource not found")
			return
		}
		jsonResp(w, http.StatusOK, ToResource(m))

	case http.MethodDelete:
		purge, _ := strconv.ParseBool(r.URL.Query().Get("purge"))
		if purge {
			if m, ok := h.store.Get(id); ok && h.remover != nil {
				if err := h.remover.Remove(r.Context(), m.Location); err != nil {
					slog.Warn("api: purge failed", "id", id, "location", m.Location, "err", err)
					status := http.StatusInternalServerError
					if errors.Is(err, files.ErrOutsideRoot) {
						status = http.StatusForbidden
					}
					jsonErr(w, status, err.Error())
					return
				}
			}
		}
		h.store.Delete(id)
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// evict serves POST /api/v1/evict. An omitted max_age_hours uses the store default.
func (h *Handler) evict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.EvictRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	maxAge := float64(store.DefaultMaxAgeHours)
	if req.MaxAgeHours != nil {
		maxAge = *req.MaxAgeHours
	}

	res, err := h.sweeper.SweepWith(r.Context(), maxAge)
	if err != nil {
		writeStoreErr(w, err)
		return
	}

	ids := make([]string, 0, len(res.Evicted))
	for _, m := range res.Evicted {
		ids = append(ids, m.ID)
	}
	jsonResp(w, http.StatusOK, types.EvictResponse{
		Evicted:      len(res.Evicted),
		IDs:          ids,
		RemoveErrors: res.RemoveErrors,
	})
}

// activity serves GET /api/v1/activity[?limit=N].
func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list := types.ActivityList{Activities: []types.Activity{}}
	if h.feed != nil {
		list.Activities = append(list.Activities, h.feed.Recent(limit)...)
	}
	jsonResp(w, http.StatusOK, list)
}

// --- helpers ----------------------------------------------------------------

// BuildList returns the current resources, optionally restricted to owner.
// Used by the REST list endpoint and the WebSocket hub.
func BuildList(st *store.Store, owner string) types.ResourceList {
	var ms []store.Metadata
	if owner != "" {
		ms = st.ListByOwner(owner)
	} else {
		ms = st.List()
	}
	out := make([]types.Resource, 0, len(ms))
	for _, m := range ms {
		out = append(out, ToResource(m))
	}
	return types.ResourceList{
		Resources:   out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// ToResource maps store metadata to its JSON representation.
func ToResource(m store.Metadata) types.Resource {
	return types.Resource{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Location:   m.Location,
		CapturedAt: m.CapturedAt.UTC(),
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrInvalidArgument) {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonErr(w, http.StatusInternalServerError, err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
