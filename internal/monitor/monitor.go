package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobwatch/jobwatch/internal/engine"
	"github.com/jobwatch/jobwatch/internal/jenkins"
)

// Source yields the monitored job's current build history.
type Source interface {
	Builds(ctx context.Context) ([]jenkins.Build, error)
}

// Sink receives alert events for delivery.
type Sink interface {
	Send(a engine.Alert)
}

// Monitor drives the two independent poll loops (build-level and job-level)
// over a shared engine. Each cycle runs synchronously inside its loop
// goroutine, so cycles of the same loop never overlap; a slow cycle delays
// the next tick instead of racing it.
type Monitor struct {
	source        Source
	engine        *engine.Engine
	sink          Sink
	buildInterval time.Duration
	jobInterval   time.Duration
	now           func() time.Time // injectable for deterministic tests
}

// New wires a Monitor. A zero jobInterval disables the job-level loop.
func New(source Source, eng *engine.Engine, sink Sink, buildInterval, jobInterval time.Duration) *Monitor {
	return &Monitor{
		source:        source,
		engine:        eng,
		sink:          sink,
		buildInterval: buildInterval,
		jobInterval:   jobInterval,
		now:           time.Now,
	}
}

// Run starts both poll loops and blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.jobInterval > 0 {
		go m.loop(ctx, "job", m.jobInterval, m.engine.EvaluateJob)
	} else {
		slog.Info("monitor: job-level loop disabled")
	}
	m.loop(ctx, "build", m.buildInterval, m.engine.EvaluateBuilds)
}

// loop runs one poll cycle immediately, then on every tick until ctx is
// cancelled.
func (m *Monitor) loop(ctx context.Context, name string, interval time.Duration, eval evalFunc) {
	slog.Info("monitor: loop started", "loop", name, "interval", interval)

	m.cycle(ctx, name, eval)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor: loop stopped", "loop", name)
			return
		case <-t.C:
			m.cycle(ctx, name, eval)
		}
	}
}

type evalFunc func(builds []jenkins.Build, now time.Time) []engine.Alert

// cycle runs one fetch→evaluate→notify pass. A fetch error or an
// evaluation panic aborts the cycle without touching engine state; the
// next tick reprocesses from the same point.
func (m *Monitor) cycle(ctx context.Context, name string, eval evalFunc) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("monitor: evaluation panicked — cycle aborted", "loop", name, "panic", r)
		}
	}()

	builds, err := m.source.Builds(ctx)
	if err != nil {
		m.engine.RecordFetchError(name)
		slog.Error("monitor: fetch failed — will retry next tick", "loop", name, "err", err)
		return
	}

	alerts := eval(builds, m.now())
	for _, a := range alerts {
		slog.Warn("alert fired",
			"loop", name,
			"kind", a.Kind,
			"severity", a.Severity,
			"builds", a.BuildIDs,
		)
		// Fire-and-forget: the dedup entry is already committed, so a
		// delivery failure must not block or re-run the cycle.
		go m.sink.Send(a)
	}

	slog.Debug("monitor: cycle complete", "loop", name, "builds", len(builds), "alerts", len(alerts))
}
