package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridgekeep/fridgekeep/pkg/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "ftp://host", "http://"} {
		_, err := New(u)
		assert.Error(t, err, "url %q", u)
	}
}

func TestRegister_SendsBodyAndKey(t *testing.T) {
	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/resources", r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get("X-Fridge-Key"))

		var req types.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "img-1", req.ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(types.Resource{
			ID: req.ID, OwnerID: req.OwnerID, Location: req.Location, CapturedAt: captured,
		})
	}, WithAPIKey("X-Fridge-Key", "s3cret"))

	res, err := c.Register(context.Background(), types.RegisterRequest{ID: "img-1", OwnerID: "u1", Location: "/tmp/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.OwnerID)
	assert.True(t, res.CapturedAt.Equal(captured))
}

func TestRegister_BadRequestIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "id is required"})
	})

	_, err := c.Register(context.Background(), types.RegisterRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Contains(t, err.Error(), "id is required")
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermanent))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestGet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/resources/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Get(context.Background(), "a/b")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList_OwnerQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user 1", r.URL.Query().Get("owner"))
		_ = json.NewEncoder(w).Encode(types.ResourceList{
			Resources: []types.Resource{{ID: "x", OwnerID: "user 1"}},
		})
	})

	list, err := c.List(context.Background(), "user 1")
	require.NoError(t, err)
	require.Len(t, list.Resources, 1)
	assert.Equal(t, "x", list.Resources[0].ID)
}

func TestActivity_Limit(t *testing.T) {
	var gotQuery []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/activity", r.URL.Path)
		gotQuery = append(gotQuery, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(types.ActivityList{
			Activities: []types.Activity{{ID: "e1", Kind: "registered", ResourceID: "img-1"}},
		})
	})

	list, err := c.Activity(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list.Activities, 1)
	assert.Equal(t, "img-1", list.Activities[0].ResourceID)

	_, err = c.Activity(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"limit=5", ""}, gotQuery)
}

func TestDelete_Purge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "true", r.URL.Query().Get("purge"))
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.Delete(context.Background(), "img-1", true))
}

func TestEvict(t *testing.T) {
	tests := []struct {
		name  string
		hours *float64
		want  bool
	}{
		{"server default", nil, false},
		{"explicit", ptr(0.5), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var req types.EvictRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, tc.want, req.MaxAgeHours != nil)
				_ = json.NewEncoder(w).Encode(types.EvictResponse{Evicted: 2, IDs: []string{"a", "b"}})
			})

			resp, err := c.Evict(context.Background(), tc.hours)
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Evicted)
			assert.Equal(t, []string{"a", "b"}, resp.IDs)
		})
	}
}

func ptr(f float64) *float64 { return &f }
