package engine

import (
	"sort"
	"time"

	"github.com/jobwatch/jobwatch/internal/jenkins"
)

// idsWithStatus returns the sorted ids of builds matching status whose
// StartedAt falls within (from, now]. An empty status matches any build;
// a zero from disables the window bound (used for the concurrent-running
// count, which is window-independent).
func idsWithStatus(records map[int]jenkins.Build, status jenkins.Status, from, now time.Time) []int {
	var out []int
	for id, b := range records {
		if status != "" && b.Status != status {
			continue
		}
		if !from.IsZero() && (b.StartedAt.Before(from) || b.StartedAt.After(now)) {
			continue
		}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
