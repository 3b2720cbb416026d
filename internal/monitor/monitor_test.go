package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jobwatch/jobwatch/internal/config"
	"github.com/jobwatch/jobwatch/internal/engine"
	"github.com/jobwatch/jobwatch/internal/jenkins"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeSource returns a scripted sequence of fetch results, one per call.
type fakeSource struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	builds []jenkins.Build
	err    error
}

func (f *fakeSource) Builds(_ context.Context) ([]jenkins.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	r := f.results[i]
	return r.builds, r.err
}

// recordingSink collects delivered alerts.
type recordingSink struct {
	mu     sync.Mutex
	alerts []engine.Alert
}

func (s *recordingSink) Send(a engine.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func failures(n int) []jenkins.Build {
	out := make([]jenkins.Build, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, jenkins.Build{
			ID:        i,
			FullName:  "job #" + string(rune('0'+i)),
			Status:    jenkins.StatusFailure,
			StartedAt: baseTime,
			Duration:  time.Minute,
		})
	}
	return out
}

func testEngine() *engine.Engine {
	return engine.New("job", config.Limits{
		MaxFailedAttempts:       3,
		MaxExecutedBuilds:       100,
		MaxAbortedBuilds:        100,
		MaxFailedBuilds:         100,
		MaxRunningBuilds:        100,
		MaxRunningBuildDuration: time.Hour,
		MaxAbortedBuildDuration: time.Hour,
		Window:                  time.Hour,
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestCycle_FetchEvaluateNotify(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{builds: failures(3)}}}
	sink := &recordingSink{}
	eng := testEngine()
	m := New(src, eng, sink, time.Hour, 0)
	m.now = func() time.Time { return baseTime.Add(time.Minute) }

	m.cycle(context.Background(), "build", eng.EvaluateBuilds)

	waitFor(t, func() bool { return sink.count() == 1 })
	if sink.alerts[0].Kind != engine.KindConsecutiveFailures {
		t.Errorf("delivered kind = %q", sink.alerts[0].Kind)
	}
}

func TestCycle_FetchErrorLeavesStateUntouched(t *testing.T) {
	src := &fakeSource{results: []fetchResult{
		{err: errors.New("connection refused")},
		{builds: failures(3)},
	}}
	sink := &recordingSink{}
	eng := testEngine()
	m := New(src, eng, sink, time.Hour, 0)
	m.now = func() time.Time { return baseTime.Add(time.Minute) }

	// Cycle N fails: no evaluation, a recorded fetch error, streak unchanged.
	m.cycle(context.Background(), "build", eng.EvaluateBuilds)
	snap := eng.Snapshot(baseTime.Add(time.Minute))
	if snap.FetchErrors["build"] != 1 {
		t.Errorf("fetch errors = %v, want build=1", snap.FetchErrors)
	}
	if snap.Streak != 0 || snap.TrackedBuilds != 0 {
		t.Errorf("state mutated by failed fetch: %+v", snap)
	}

	// Cycle N+1 succeeds and reprocesses the full history with no gap.
	m.cycle(context.Background(), "build", eng.EvaluateBuilds)
	waitFor(t, func() bool { return sink.count() == 1 })
	if got := eng.Snapshot(baseTime.Add(time.Minute)).Streak; got != 3 {
		t.Errorf("streak after retry = %d, want 3", got)
	}
}

func TestCycle_EvaluationPanicAbortsCycleOnly(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{builds: failures(3)}}}
	sink := &recordingSink{}
	eng := testEngine()
	m := New(src, eng, sink, time.Hour, 0)
	m.now = func() time.Time { return baseTime.Add(time.Minute) }

	// A panic during evaluation is recovered; the cycle commits nothing
	// and delivers nothing.
	m.cycle(context.Background(), "build", func([]jenkins.Build, time.Time) []engine.Alert {
		panic("rule blew up")
	})

	snap := eng.Snapshot(baseTime.Add(time.Minute))
	if snap.Streak != 0 || snap.TrackedBuilds != 0 || snap.Cycles["build"] != 0 {
		t.Errorf("state mutated by panicked cycle: %+v", snap)
	}
	if got := sink.count(); got != 0 {
		t.Errorf("deliveries after panic = %d, want 0", got)
	}

	// The next cycle reprocesses the same history as if nothing happened.
	m.cycle(context.Background(), "build", eng.EvaluateBuilds)
	waitFor(t, func() bool { return sink.count() == 1 })
	if got := eng.Snapshot(baseTime.Add(time.Minute)).Streak; got != 3 {
		t.Errorf("streak after recovery = %d, want 3", got)
	}
}

func TestCycle_RepolledHistoryDeliversNothingNew(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{builds: failures(3)}}}
	sink := &recordingSink{}
	eng := testEngine()
	m := New(src, eng, sink, time.Hour, 0)
	m.now = func() time.Time { return baseTime.Add(time.Minute) }

	m.cycle(context.Background(), "build", eng.EvaluateBuilds)
	m.cycle(context.Background(), "build", eng.EvaluateBuilds)
	m.cycle(context.Background(), "build", eng.EvaluateBuilds)

	waitFor(t, func() bool { return sink.count() >= 1 })
	// Give stray goroutines a moment, then confirm only one delivery.
	time.Sleep(50 * time.Millisecond)
	if got := sink.count(); got != 1 {
		t.Errorf("deliveries = %d, want 1", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	src := &fakeSource{results: []fetchResult{{builds: nil}}}
	sink := &recordingSink{}
	m := New(src, testEngine(), sink, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls >= 2 // both loops have polled at least once
	})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
