// Package monitor schedules the two poll loops over the shared evaluation
// engine: the build-level loop (streak, duration, and concurrent-running
// rules, typically every few seconds) and the job-level loop (window count
// rules, typically every few hours).
//
// Each cycle is fetch → evaluate → notify. Fetch failures and evaluation
// panics abort the cycle only; the engine's position is untouched and the
// next tick retries the same data. Alert delivery is fire-and-forget in a
// goroutine per event.
package monitor
