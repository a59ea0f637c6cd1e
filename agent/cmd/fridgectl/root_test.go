package main

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/fridgekeep/fridgekeep/pkg/types"
)

// fakeServer is a minimal in-memory stand-in for the fridgekeep REST API.
type fakeServer struct {
	mu      sync.Mutex
	byID    map[string]types.Resource
	lastKey string
	evictIn *types.EvictRequest
	limit   string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{byID: make(map[string]types.Resource)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/resources", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastKey = r.Header.Get("x-api-key")
		if r.Method == http.MethodPost {
			var req types.RegisterRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			res := types.Resource{ID: req.ID, OwnerID: req.OwnerID, Location: req.Location}
			f.byID[req.ID] = res
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(res)
			return
		}
		list := types.ResourceList{Resources: []types.Resource{}}
		for _, res := range f.byID {
			list.Resources = append(list.Resources, res)
		}
		_ = json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("/api/v1/resources/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/resources/")
		res, ok := f.byID[id]
		switch {
		case r.Method == http.MethodDelete:
			delete(f.byID, id)
			w.WriteHeader(http.StatusNoContent)
		case !ok:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "not found"})
		default:
			_ = json.NewEncoder(w).Encode(res)
		}
	})
	mux.HandleFunc("/api/v1/evict", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req types.EvictRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.evictIn = &req
		_ = json.NewEncoder(w).Encode(types.EvictResponse{Evicted: 1, IDs: []string{"old"}})
	})
	mux.HandleFunc("/api/v1/activity", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.limit = r.URL.Query().Get("limit")
		_ = json.NewEncoder(w).Encode(types.ActivityList{Activities: []types.Activity{
			{ID: "e2", Kind: "evicted", ResourceID: "old"},
			{ID: "e1", Kind: "registered", ResourceID: "old"},
		}})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# TYPE fridgekeep_resources_live gauge\nfridgekeep_resources_live 4\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

// run executes fridgectl with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRegister_GeneratesUUID(t *testing.T) {
	f, srv := newFakeServer(t)

	out, err := run(t, "--server", srv.URL, "--api-key", "k", "register", "--owner", "u1", "--location", "/spool/a.jpg")
	require.NoError(t, err)

	var res types.Resource
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.ID, 36)
	assert.Equal(t, "u1", res.OwnerID)
	assert.Equal(t, "k", f.lastKey)
}

func TestGetAndDelete(t *testing.T) {
	_, srv := newFakeServer(t)

	_, err := run(t, "--server", srv.URL, "register", "--id", "img-1")
	require.NoError(t, err)

	out, err := run(t, "--server", srv.URL, "get", "img-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "img-1"`)

	out, err = run(t, "--server", srv.URL, "delete", "img-1")
	require.NoError(t, err)
	assert.Equal(t, "deleted img-1\n", out)

	_, err = run(t, "--server", srv.URL, "get", "img-1")
	assert.Error(t, err)
}

func TestServerFromEnv(t *testing.T) {
	_, srv := newFakeServer(t)
	t.Setenv("FRIDGECTL_SERVER", srv.URL)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"resources"`)
}

func TestEvict_DefaultLeavesThresholdToServer(t *testing.T) {
	f, srv := newFakeServer(t)

	_, err := run(t, "--server", srv.URL, "evict")
	require.NoError(t, err)
	require.NotNil(t, f.evictIn)
	assert.Nil(t, f.evictIn.MaxAgeHours)

	out, err := run(t, "--server", srv.URL, "evict", "--max-age-hours", "0.5")
	require.NoError(t, err)
	require.NotNil(t, f.evictIn.MaxAgeHours)
	assert.Equal(t, 0.5, *f.evictIn.MaxAgeHours)
	assert.Contains(t, out, `"evicted": 1`)
}

func TestActivity(t *testing.T) {
	f, srv := newFakeServer(t)

	out, err := run(t, "--server", srv.URL, "activity", "--limit", "2")
	require.NoError(t, err)
	assert.Equal(t, "2", f.limit)
	assert.Contains(t, out, `"kind": "evicted"`)

	_, err = run(t, "--server", srv.URL, "activity", "--limit", "0")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	_, srv := newFakeServer(t)

	out, err := run(t, "--server", srv.URL, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "live:          4")
}

func TestHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)
	_, err = run(t, "--grpc-addr", lis.Addr().String(), "health")
	assert.Error(t, err)

	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	out, err := run(t, "--grpc-addr", lis.Addr().String(), "health")
	require.NoError(t, err)
	assert.Equal(t, "SERVING\n", out)
}
