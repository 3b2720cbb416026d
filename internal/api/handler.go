package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/engine"
	"github.com/jobwatch/jobwatch/internal/notify"
	"github.com/jobwatch/jobwatch/internal/security"
)

// Handler serves the /api/v1/* status endpoints and /metrics.
// It reads derived state from the evaluation engine; it never mutates it.
type Handler struct {
	engine   *engine.Engine
	notifier *notify.Notifier
	jenkins  config.JenkinsConfig
	router   *mux.Router
}

// New creates a Handler wired to the given engine and notifier and
// registers all routes.
func New(eng *engine.Engine, notifier *notify.Notifier, jcfg config.JenkinsConfig) *Handler {
	h := &Handler{engine: eng, notifier: notifier, jenkins: jcfg, router: mux.NewRouter()}

	// mux clears a recorded method mismatch as soon as a sibling route's
	// prefix matcher succeeds, so MethodNotAllowedHandler never fires in a
	// multi-route PathPrefix subrouter; a per-path fallback route (no method
	// filter, registered after the GET route) returns the 405 instead.
	notAllowed := func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}

	v1 := h.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.health).Methods(http.MethodGet)
	v1.HandleFunc("/health", notAllowed)
	v1.HandleFunc("/builds", h.builds).Methods(http.MethodGet)
	v1.HandleFunc("/builds", notAllowed)
	v1.HandleFunc("/alerts", h.alerts).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", notAllowed)
	v1.HandleFunc("/cert", h.cert).Methods(http.MethodGet)
	v1.HandleFunc("/cert", notAllowed)
	h.router.HandleFunc("/metrics", h.metrics).Methods(http.MethodGet)
	h.router.HandleFunc("/metrics", notAllowed)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// BuildStatus assembles the current status payload. Shared with the
// WebSocket hub so both surfaces report identical state.
func BuildStatus(eng *engine.Engine, notifier *notify.Notifier) StatusResponse {
	now := time.Now()
	snap := eng.Snapshot(now)

	fired := make(map[string]uint64, len(snap.AlertsFired))
	for k, v := range snap.AlertsFired {
		fired[string(k)] = v
	}

	return StatusResponse{
		Job:            snap.Job,
		Streak:         snap.Streak,
		WindowExecuted: snap.WindowExecuted,
		WindowAborted:  snap.WindowAborted,
		WindowFailed:   snap.WindowFailed,
		Running:        snap.Running,
		TrackedBuilds:  snap.TrackedBuilds,
		PollCycles:     snap.Cycles,
		FetchErrors:    snap.FetchErrors,
		AlertsFired:    fired,
		NotifyFailures: notifier.Failures(),
		GeneratedAt:    now.UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — the current derived engine state.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, BuildStatus(h.engine, h.notifier))
}

// builds returns GET /api/v1/builds — every tracked build, ascending by id.
func (h *Handler) builds(w http.ResponseWriter, _ *http.Request) {
	tracked := h.engine.Builds()
	out := make([]BuildResponse, 0, len(tracked))
	for _, b := range tracked {
		out = append(out, BuildResponse{
			ID:              b.ID,
			FullName:        b.FullName,
			Status:          string(b.Status),
			StartedAt:       b.StartedAt.UTC().Format(time.RFC3339),
			DurationSeconds: b.Duration.Seconds(),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// alerts returns GET /api/v1/alerts — recently fired alerts, newest first.
func (h *Handler) alerts(w http.ResponseWriter, _ *http.Request) {
	recent := h.engine.Recent()
	if recent == nil {
		recent = []engine.Alert{}
	}
	jsonResp(w, http.StatusOK, AlertsResponse{Alerts: recent})
}

// cert returns GET /api/v1/cert — the TLS certificate status of the
// monitored Jenkins server, checked on request.
func (h *Handler) cert(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, security.Check(r.Context(), h.jenkins))
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
