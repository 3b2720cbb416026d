package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/jenkins"
)

// maxRecentLen caps the recent-alert ring kept for the status API.
const maxRecentLen = 200

// Engine is the metrics/alerting evaluation core. It ingests overlapping
// build-history polls, maintains derived state (failure streak, per-window
// counts, fired-alert dedup keys), and decides which alerts fire exactly
// once per qualifying condition.
//
// All state lives in memory for the process lifetime. Engine is safe for
// concurrent use: the build-level and job-level poll loops share one Engine
// and serialize on its mutex.
type Engine struct {
	limits config.Limits
	job    string

	mu      sync.Mutex
	records map[int]jenkins.Build // every observed build, keyed by id
	streak  streakState
	fired   map[string]struct{} // dedup keys of alerts already fired
	recent  []Alert             // newest last, capped at maxRecentLen
	stats   stats
}

// streakState is the consecutive-failure tracker. seen holds every terminal
// build id the tracker has consumed, so re-polls of overlapping history are
// idempotent.
type streakState struct {
	count int
	ids   []int // contributing failure ids of the current run
	fired bool  // CONSECUTIVE_FAILURES already fired for this run
	seen  map[int]struct{}
}

// stats are the engine's own observability counters, exposed via Snapshot.
type stats struct {
	cycles      map[string]uint64
	fetchErrors map[string]uint64
	alertsFired map[Kind]uint64
}

// New creates an Engine for the named job with the given thresholds.
func New(job string, limits config.Limits) *Engine {
	return &Engine{
		limits:  limits,
		job:     job,
		records: make(map[int]jenkins.Build),
		streak:  streakState{seen: make(map[int]struct{})},
		fired:   make(map[string]struct{}),
		stats: stats{
			cycles:      make(map[string]uint64),
			fetchErrors: make(map[string]uint64),
			alertsFired: make(map[Kind]uint64),
		},
	}
}

// EvaluateBuilds runs the build-level rules against one poll of the build
// history: the failure streak, the per-build duration rules, and the
// concurrent-running rule. It returns the alerts that fired this cycle.
//
// now is passed explicitly so callers (and tests) control the clock.
// State changes are staged and committed only after every rule has run, so
// a panic mid-evaluation leaves the engine untouched.
func (e *Engine) EvaluateBuilds(builds []jenkins.Build, now time.Time) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.merged(builds)
	st := e.streak.clone()

	var alerts []Alert
	var keys []string

	// Streak: consume unseen terminal builds in ascending id order.
	for _, b := range terminalUnseen(merged, st.seen) {
		st.seen[b.ID] = struct{}{}
		switch b.Status {
		case jenkins.StatusFailure:
			st.count++
			st.ids = append(st.ids, b.ID)
		case jenkins.StatusSuccess:
			st.count = 0
			st.ids = nil
			st.fired = false
		}
		// Anything else (ABORTED, UNSTABLE, ...) neither extends nor
		// resets the streak.
	}
	if st.count >= e.limits.MaxFailedAttempts && !st.fired {
		st.fired = true
		ids := append([]int(nil), st.ids...)
		alerts = append(alerts, e.newAlert(KindConsecutiveFailures, ids, merged, now))
	}

	// Duration rules: edge-triggered, at most once per build id. An
	// aborted build qualifies only while its abort time is within the
	// window; anything older is settled history, not an incident.
	staleBefore := now.Add(-e.limits.Window)
	for _, b := range sortedByID(merged) {
		switch {
		case b.Status == jenkins.StatusInProgress &&
			now.Sub(b.StartedAt) > e.limits.MaxRunningBuildDuration:
			if k := buildKey(KindBuildExecutionTimeExceeded, b.ID); !e.firedKey(k) {
				keys = append(keys, k)
				alerts = append(alerts, e.newAlert(KindBuildExecutionTimeExceeded, []int{b.ID}, merged, now))
			}
		case b.Status == jenkins.StatusAborted &&
			b.Duration > e.limits.MaxAbortedBuildDuration &&
			!b.StartedAt.Add(b.Duration).Before(staleBefore):
			if k := buildKey(KindBuildTimedOut, b.ID); !e.firedKey(k) {
				keys = append(keys, k)
				alerts = append(alerts, e.newAlert(KindBuildTimedOut, []int{b.ID}, merged, now))
			}
		}
	}

	// Concurrent-running rule: keyed by the contributing id set, so the
	// same overflowing set is reported once and a changed set re-fires.
	running := idsWithStatus(merged, jenkins.StatusInProgress, time.Time{}, now)
	if len(running) >= e.limits.MaxRunningBuilds {
		if k := setKey(KindMultipleBuildsRunning, running); !e.firedKey(k) {
			keys = append(keys, k)
			alerts = append(alerts, e.newAlert(KindMultipleBuildsRunning, running, merged, now))
		}
	}

	e.commit("build", merged, st, keys, alerts)
	return alerts
}

// EvaluateJob runs the window count rules (executed/aborted/failed within
// the sliding window) against one poll of the build history.
//
// The window is re-evaluated against now every cycle, so counts decay as
// old builds age out. Identity is by build id: a build observed across
// overlapping polls is counted once.
func (e *Engine) EvaluateJob(builds []jenkins.Build, now time.Time) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.merged(builds)
	cutoff := now.Add(-e.limits.Window)

	var alerts []Alert
	var keys []string

	for _, rule := range []struct {
		kind  Kind
		ids   []int
		limit int
	}{
		{KindMultipleBuildsExecuted, idsWithStatus(merged, "", cutoff, now), e.limits.MaxExecutedBuilds},
		{KindMultipleAbortedBuilds, idsWithStatus(merged, jenkins.StatusAborted, cutoff, now), e.limits.MaxAbortedBuilds},
		{KindMultipleBuildFailures, idsWithStatus(merged, jenkins.StatusFailure, cutoff, now), e.limits.MaxFailedBuilds},
	} {
		if len(rule.ids) < rule.limit {
			continue
		}
		if k := setKey(rule.kind, rule.ids); !e.firedKey(k) {
			keys = append(keys, k)
			alerts = append(alerts, e.newAlert(rule.kind, rule.ids, merged, now))
		}
	}

	e.commit("job", merged, e.streak.clone(), keys, alerts)
	return alerts
}

// RecordFetchError counts a failed fetch for the given loop. The poll
// position is implicit in the dedup state, which a failed cycle never
// touches — the next tick reprocesses from the same point.
func (e *Engine) RecordFetchError(loop string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.fetchErrors[loop]++
}

// Recent returns copies of the most recently fired alerts, newest first.
func (e *Engine) Recent() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alert, 0, len(e.recent))
	for i := len(e.recent) - 1; i >= 0; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

// Builds returns every tracked build, sorted by ascending id.
func (e *Engine) Builds() []jenkins.Build {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedByID(e.records)
}

// Snapshot summarizes the engine's current derived state for the status
// API, the WebSocket stream, and the metrics endpoint.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := now.Add(-e.limits.Window)
	snap := Snapshot{
		Job:            e.job,
		Streak:         e.streak.count,
		WindowExecuted: len(idsWithStatus(e.records, "", cutoff, now)),
		WindowAborted:  len(idsWithStatus(e.records, jenkins.StatusAborted, cutoff, now)),
		WindowFailed:   len(idsWithStatus(e.records, jenkins.StatusFailure, cutoff, now)),
		Running:        len(idsWithStatus(e.records, jenkins.StatusInProgress, time.Time{}, now)),
		TrackedBuilds:  len(e.records),
		Cycles:         make(map[string]uint64, len(e.stats.cycles)),
		FetchErrors:    make(map[string]uint64, len(e.stats.fetchErrors)),
		AlertsFired:    make(map[Kind]uint64, len(e.stats.alertsFired)),
	}
	for k, v := range e.stats.cycles {
		snap.Cycles[k] = v
	}
	for k, v := range e.stats.fetchErrors {
		snap.FetchErrors[k] = v
	}
	for k, v := range e.stats.alertsFired {
		snap.AlertsFired[k] = v
	}
	return snap
}

// Snapshot is the engine state summary returned by Engine.Snapshot.
type Snapshot struct {
	Job            string
	Streak         int
	WindowExecuted int
	WindowAborted  int
	WindowFailed   int
	Running        int
	TrackedBuilds  int
	Cycles         map[string]uint64
	FetchErrors    map[string]uint64
	AlertsFired    map[Kind]uint64
}

// --- internal ---------------------------------------------------------------

// merged returns a fresh record map: every previously observed build
// overlaid with this poll's observations. A terminal record is immutable —
// a conflicting re-observation is dropped with a warning.
func (e *Engine) merged(builds []jenkins.Build) map[int]jenkins.Build {
	out := make(map[int]jenkins.Build, len(e.records)+len(builds))
	for id, b := range e.records {
		out[id] = b
	}
	for _, b := range builds {
		if prev, ok := out[b.ID]; ok && prev.Status.Terminal() {
			if b.Status != prev.Status {
				slog.Warn("engine: ignoring status change on terminal build",
					"build", b.ID, "have", prev.Status, "got", b.Status)
			}
			continue
		}
		out[b.ID] = b
	}
	return out
}

// commit applies one cycle's staged state in a single step.
func (e *Engine) commit(loop string, merged map[int]jenkins.Build, st streakState, keys []string, alerts []Alert) {
	e.records = merged
	e.streak = st
	for _, k := range keys {
		e.fired[k] = struct{}{}
	}
	for _, a := range alerts {
		e.stats.alertsFired[a.Kind]++
		e.recent = append(e.recent, a)
	}
	if len(e.recent) > maxRecentLen {
		e.recent = e.recent[len(e.recent)-maxRecentLen:]
	}
	e.stats.cycles[loop]++
}

func (e *Engine) firedKey(key string) bool {
	_, ok := e.fired[key]
	return ok
}

func (st streakState) clone() streakState {
	out := streakState{
		count: st.count,
		ids:   append([]int(nil), st.ids...),
		fired: st.fired,
		seen:  make(map[int]struct{}, len(st.seen)),
	}
	for id := range st.seen {
		out.seen[id] = struct{}{}
	}
	return out
}

// terminalUnseen returns the terminal builds not yet consumed by the streak
// tracker, in ascending id order.
func terminalUnseen(records map[int]jenkins.Build, seen map[int]struct{}) []jenkins.Build {
	var out []jenkins.Build
	for id, b := range records {
		if !b.Status.Terminal() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sortedByID returns the records as a slice in ascending id order.
func sortedByID(records map[int]jenkins.Build) []jenkins.Build {
	out := make([]jenkins.Build, 0, len(records))
	for _, b := range records {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
