package jenkins

import "time"

// Status is the normalized state of one build.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
	StatusAborted    Status = "ABORTED"
	StatusUnstable   Status = "UNSTABLE"
	StatusInProgress Status = "IN_PROGRESS"
)

// Terminal reports whether s is a final state. A terminal status never
// changes for a given build id; an IN_PROGRESS build may be re-observed
// later with a terminal status. Result values no rule matches (UNSTABLE,
// NOT_BUILT, ...) are completed builds like any other.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// Build is the normalized representation of one build, converted from the
// Jenkins API payload at the boundary. Immutable once observed terminal.
type Build struct {
	// ID is the build number. Jenkins issues ids in strictly increasing
	// order per job.
	ID int

	// FullName is the build's display name, e.g. "deploy-prod #143".
	FullName string

	// Status is the normalized build state.
	Status Status

	// StartedAt is when the build started.
	StartedAt time.Time

	// Duration is the total build duration. Zero while IN_PROGRESS.
	Duration time.Duration
}

// jobResponse mirrors the Jenkins job API JSON envelope.
type jobResponse struct {
	Builds []rawBuild `json:"builds"`
}

// rawBuild mirrors one entry of the builds[] array as Jenkins returns it.
// The id is a decimal string, timestamps and durations are epoch/interval
// milliseconds, and result is null while the build is running.
type rawBuild struct {
	ID              string `json:"id"`
	Building        bool   `json:"building"`
	Result          string `json:"result"`
	Timestamp       int64  `json:"timestamp"`
	Duration        int64  `json:"duration"`
	FullDisplayName string `json:"fullDisplayName"`
}
