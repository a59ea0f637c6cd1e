package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fridgekeep/fridgekeep/pkg/types"
)

const defaultTimeout = 10 * time.Second

// ErrPermanent is wrapped by errors the server will keep returning for the
// same request (4xx). Retrying such a request is pointless.
var ErrPermanent = errors.New("permanent request error")

// ErrNotFound is returned by Get when the server has no record for the id.
var ErrNotFound = errors.New("resource not found")

// StatusError carries a non-2xx response from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Unwrap classifies 4xx responses as ErrPermanent.
func (e *StatusError) Unwrap() error {
	if e.Code >= 400 && e.Code < 500 {
		return ErrPermanent
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in header on every request. An empty key is ignored.
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		if key == "" {
			return
		}
		if header == "" {
			header = "x-api-key"
		}
		c.header, c.key = header, key
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to one fridgekeep-server.
type Client struct {
	base   string
	http   *http.Client
	header string
	key    string
}

// New returns a Client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Register records a resource and returns the server's stored copy.
func (c *Client) Register(ctx context.Context, req types.RegisterRequest) (types.Resource, error) {
	var out types.Resource
	err := c.do(ctx, http.MethodPost, "/api/v1/resources", req, &out)
	return out, err
}

// Get fetches one resource. A missing id yields an error wrapping ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (types.Resource, error) {
	var out types.Resource
	err := c.do(ctx, http.MethodGet, "/api/v1/resources/"+url.PathEscape(id), nil, &out)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return out, fmt.Errorf("client: get %q: %w", id, ErrNotFound)
	}
	return out, err
}

// List returns all resources, or only those of owner when it is non-empty.
func (c *Client) List(ctx context.Context, owner string) (types.ResourceList, error) {
	path := "/api/v1/resources"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out types.ResourceList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Delete forgets a resource. With purge the server also removes its file.
func (c *Client) Delete(ctx context.Context, id string, purge bool) error {
	path := "/api/v1/resources/" + url.PathEscape(id)
	if purge {
		path += "?purge=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Evict runs a sweep on the server. A nil maxAgeHours uses the server default.
func (c *Client) Evict(ctx context.Context, maxAgeHours *float64) (types.EvictResponse, error) {
	var out types.EvictResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/evict", types.EvictRequest{MaxAgeHours: maxAgeHours}, &out)
	return out, err
}

// Activity returns up to limit recent events, newest first. A non-positive
// limit leaves the count to the server.
func (c *Client) Activity(ctx context.Context, limit int) (types.ActivityList, error) {
	path := "/api/v1/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out types.ActivityList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Health reports the server state and live resource count.
func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	var out types.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e types.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return fmt.Errorf("client: %s %s: %w", method, path, &StatusError{Code: resp.StatusCode, Message: e.Error})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}
