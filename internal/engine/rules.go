package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobwatch/jobwatch/internal/jenkins"
)

// Kind identifies one alert rule.
type Kind string

const (
	// KindConsecutiveFailures — the failure streak reached max_failed_attempts.
	KindConsecutiveFailures Kind = "CONSECUTIVE_FAILURES"

	// KindMultipleBuildsExecuted — builds started within the window reached
	// max_executed_builds.
	KindMultipleBuildsExecuted Kind = "MULTIPLE_BUILDS_EXECUTED"

	// KindMultipleAbortedBuilds — aborted builds within the window reached
	// max_aborted_builds.
	KindMultipleAbortedBuilds Kind = "MULTIPLE_ABORTED_BUILDS"

	// KindMultipleBuildFailures — failed builds within the window reached
	// max_failed_builds.
	KindMultipleBuildFailures Kind = "MULTIPLE_BUILD_FAILURES"

	// KindMultipleBuildsRunning — concurrently in-progress builds reached
	// max_running_builds.
	KindMultipleBuildsRunning Kind = "MULTIPLE_BUILDS_RUNNING"

	// KindBuildExecutionTimeExceeded — a build has been in progress longer
	// than max_running_build_duration.
	KindBuildExecutionTimeExceeded Kind = "BUILD_EXECUTION_TIME_EXCEEDED"

	// KindBuildTimedOut — a build was aborted after running longer than
	// max_aborted_build_duration.
	KindBuildTimedOut Kind = "BUILD_TIMED_OUT"
)

// Kinds lists every rule kind, in a stable order for the metrics endpoint.
var Kinds = []Kind{
	KindConsecutiveFailures,
	KindMultipleBuildsExecuted,
	KindMultipleAbortedBuilds,
	KindMultipleBuildFailures,
	KindMultipleBuildsRunning,
	KindBuildExecutionTimeExceeded,
	KindBuildTimedOut,
}

// Severity returns the delivery severity for the rule: repeated failures are
// critical, everything else is a warning.
func (k Kind) Severity() string {
	switch k {
	case KindConsecutiveFailures, KindMultipleBuildFailures:
		return "critical"
	default:
		return "warning"
	}
}

// Alert is a single alert event produced by the rule engine and handed to
// the notifier gateway. Consumed once, then discarded.
type Alert struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Severity string    `json:"severity"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	BuildIDs []int     `json:"build_ids"`
	FiredAt  time.Time `json:"fired_at"`
}

// newAlert builds the Alert for one fired rule. records supplies display
// names for the contributing builds.
func (e *Engine) newAlert(kind Kind, ids []int, records map[int]jenkins.Build, now time.Time) Alert {
	a := Alert{
		ID:       uuid.NewString(),
		Kind:     kind,
		Severity: kind.Severity(),
		BuildIDs: ids,
		FiredAt:  now,
	}

	windowHours := e.limits.Window.Hours()

	switch kind {
	case KindConsecutiveFailures:
		a.Title = "Build failed multiple times"
		a.Message = fmt.Sprintf("%s has failed %d times in a row.",
			lastName(records, ids, e.job), len(ids))

	case KindMultipleBuildsExecuted:
		a.Title = fmt.Sprintf("Several %s builds executed", e.job)
		a.Message = fmt.Sprintf("%d builds executed within the last %.1f hours.",
			len(ids), windowHours)

	case KindMultipleAbortedBuilds:
		a.Title = fmt.Sprintf("Several %s builds aborted", e.job)
		a.Message = fmt.Sprintf("%d builds aborted within the last %.1f hours.",
			len(ids), windowHours)

	case KindMultipleBuildFailures:
		a.Title = fmt.Sprintf("Several %s builds failed", e.job)
		a.Message = fmt.Sprintf("%d builds failed within the last %.1f hours.",
			len(ids), windowHours)

	case KindMultipleBuildsRunning:
		a.Title = fmt.Sprintf("Several %s builds running", e.job)
		a.Message = fmt.Sprintf("%d builds currently running: %s",
			len(ids), strings.Join(names(records, ids), ", "))

	case KindBuildExecutionTimeExceeded:
		a.Title = "Build still running"
		b := records[ids[0]]
		a.Message = fmt.Sprintf("%s has been running for the last %.1f hours.",
			displayName(b, e.job), now.Sub(b.StartedAt).Hours())

	case KindBuildTimedOut:
		a.Title = "Build has timed out"
		b := records[ids[0]]
		a.Message = fmt.Sprintf("%s aborted after %.1f hours.",
			displayName(b, e.job), b.Duration.Hours())
	}

	return a
}

// buildKey is the dedup key for per-build rules.
func buildKey(kind Kind, id int) string {
	return string(kind) + ":" + strconv.Itoa(id)
}

// setKey is the dedup key for window rules: the kind plus the sorted
// contributing id set. The same overflowing set never re-fires; a set that
// gains or loses a member is a fresh breach.
func setKey(kind Kind, ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	var sb strings.Builder
	sb.WriteString(string(kind))
	for _, id := range sorted {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}

// names maps build ids to display names, in id order.
func names(records map[int]jenkins.Build, ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, records[id].FullName)
	}
	return out
}

// lastName returns the display name of the highest contributing id, falling
// back to the job name when the id is unknown.
func lastName(records map[int]jenkins.Build, ids []int, job string) string {
	if len(ids) == 0 {
		return job
	}
	return displayName(records[ids[len(ids)-1]], job)
}

// displayName falls back to the job name when a build carries no
// fullDisplayName.
func displayName(b jenkins.Build, job string) string {
	if b.FullName == "" {
		return job
	}
	return b.FullName
}
