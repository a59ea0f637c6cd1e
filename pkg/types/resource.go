package types

import "time"

// RegisterRequest is the body of POST /api/v1/resources.
type RegisterRequest struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Location string `json:"location"`
}

// Resource is one tracked resource as returned by the API.
type Resource struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Location   string    `json:"location"`
	CapturedAt time.Time `json:"captured_at"`
}

// ResourceList is the payload for GET /api/v1/resources and the WebSocket stream.
type ResourceList struct {
	Resources   []Resource `json:"resources"`
	GeneratedAt string     `json:"generated_at"` // RFC3339
}

// EvictRequest is the body of POST /api/v1/evict.
// A nil MaxAgeHours selects the server default of 24 hours.
type EvictRequest struct {
	MaxAgeHours *float64 `json:"max_age_hours,omitempty"`
}

// EvictResponse reports the outcome of a sweep.
type EvictResponse struct {
	Evicted      int      `json:"evicted"`
	IDs          []string `json:"ids"`
	RemoveErrors int      `json:"remove_errors"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string `json:"state"`
	ResourceCount int    `json:"resource_count"`
}

// ErrorResponse is a generic JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Activity is one entry of the recent-activity feed.
type Activity struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // registered | deleted | evicted | replaced | analyzed | analysis_failed
	ResourceID string    `json:"resource_id"`
	OwnerID    string    `json:"owner_id"`
	Location   string    `json:"location"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// ActivityList is the payload for GET /api/v1/activity, newest first.
type ActivityList struct {
	Activities []Activity `json:"activities"`
}

// AnalysisRequest is the body POSTed to the external analyzer for one capture.
type AnalysisRequest struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Location   string    `json:"location"`
	CapturedAt time.Time `json:"captured_at"`
}

// DetectedItem is one food item the analyzer recognised in a capture.
type DetectedItem struct {
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category,omitempty"`
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// AnalysisResult is the analyzer's response for one capture.
type AnalysisResult struct {
	ID       string         `json:"id"`
	Items    []DetectedItem `json:"items"`
	Warnings []string       `json:"warnings,omitempty"`
}
