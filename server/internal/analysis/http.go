package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fridgekeep/fridgekeep/pkg/types"
)

// HTTPAnalyzer posts captures to an analysis service as JSON and decodes its
// types.AnalysisResult response.
type HTTPAnalyzer struct {
	endpoint string
	header   string
	key      string
	client   *http.Client
}

// NewHTTPAnalyzer returns an analyzer for endpoint. When key is non-empty it
// is sent in header (default x-api-key).
func NewHTTPAnalyzer(endpoint, header, key string) *HTTPAnalyzer {
	if header == "" {
		header = "x-api-key"
	}
	return &HTTPAnalyzer{endpoint: endpoint, header: header, key: key, client: &http.Client{}}
}

// Analyze implements Analyzer. Deadlines come from ctx.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, error) {
	var out types.AnalysisResult

	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("analysis: encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("analysis: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if a.key != "" {
		hreq.Header.Set(a.header, a.key)
	}

	resp, err := a.client.Do(hreq)
	if err != nil {
		return out, fmt.Errorf("analysis: post %s: %w", a.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("analysis: %s returned %d: %s", a.endpoint, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("analysis: decode response: %w", err)
	}
	return out, nil
}
