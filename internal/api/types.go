package api

import "github.com/jobwatch/jobwatch/internal/engine"

// StatusResponse is the payload for GET /api/v1/health and the WebSocket
// broadcast envelope.
type StatusResponse struct {
	Job            string            `json:"job"`
	Streak         int               `json:"streak"`
	WindowExecuted int               `json:"window_executed"`
	WindowAborted  int               `json:"window_aborted"`
	WindowFailed   int               `json:"window_failed"`
	Running        int               `json:"running"`
	TrackedBuilds  int               `json:"tracked_builds"`
	PollCycles     map[string]uint64 `json:"poll_cycles"`
	FetchErrors    map[string]uint64 `json:"fetch_errors"`
	AlertsFired    map[string]uint64 `json:"alerts_fired"`
	NotifyFailures uint64            `json:"notify_failures"`
	GeneratedAt    string            `json:"generated_at"` // RFC3339
}

// BuildResponse is one tracked build in GET /api/v1/builds.
type BuildResponse struct {
	ID              int     `json:"id"`
	FullName        string  `json:"full_name"`
	Status          string  `json:"status"`
	StartedAt       string  `json:"started_at"` // RFC3339
	DurationSeconds float64 `json:"duration_seconds"`
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []engine.Alert `json:"alerts"`
}
