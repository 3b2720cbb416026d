// Package engine implements the metrics/alerting evaluation core: it
// ingests overlapping polls of a CI job's build history and decides which
// alerts fire, exactly once per qualifying condition.
//
// Derived state, all in-memory for the process lifetime:
//   - a consecutive-failure streak (terminal builds consumed once each, in
//     ascending id order; FAILURE increments, SUCCESS resets, ABORTED is
//     neutral)
//   - a sliding time window over build start times, re-evaluated against the
//     wall clock every cycle, with identity by build id
//   - a dedup store of fired alerts: per-build rules are keyed
//     (kind, build id); window rules are keyed (kind, contributing id set),
//     so a breach re-fires only when the set itself changes
//
// EvaluateBuilds runs the build-level rules (streak, duration,
// concurrent-running); EvaluateJob runs the window count rules. The two
// poll loops share one Engine and serialize on its mutex. Evaluation is
// free of I/O and takes the clock as an argument; state changes are staged
// and committed atomically per cycle.
package engine
