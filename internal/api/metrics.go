package api

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/jobwatch/jobwatch/internal/engine"
)

// metrics returns GET /metrics — the monitor's own counters and gauges in
// Prometheus text exposition format.
func (h *Handler) metrics(w http.ResponseWriter, _ *http.Request) {
	snap := h.engine.Snapshot(time.Now())

	families := []*dto.MetricFamily{
		counterFamily("jobwatch_poll_cycles_total",
			"Completed poll cycles per loop.",
			"loop", uintMap(snap.Cycles)),
		counterFamily("jobwatch_fetch_errors_total",
			"Failed build-history fetches per loop.",
			"loop", uintMap(snap.FetchErrors)),
		counterFamily("jobwatch_alerts_fired_total",
			"Alerts fired per rule.",
			"rule", alertCounts(snap)),
		counterFamily("jobwatch_notify_failures_total",
			"Webhook deliveries that failed.",
			"", map[string]float64{"": float64(h.notifier.Failures())}),
		gaugeFamily("jobwatch_consecutive_failures",
			"Current consecutive-failure streak.",
			"", map[string]float64{"": float64(snap.Streak)}),
		gaugeFamily("jobwatch_window_builds",
			"Builds within the sliding window by outcome.",
			"status", map[string]float64{
				"executed": float64(snap.WindowExecuted),
				"aborted":  float64(snap.WindowAborted),
				"failed":   float64(snap.WindowFailed),
			}),
		gaugeFamily("jobwatch_builds_running",
			"Builds currently in progress.",
			"", map[string]float64{"": float64(snap.Running)}),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		// expfmt's text encoder rejects a family with zero series; a loop's
		// counters are empty until its first cycle or error.
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			slog.Error("api: encode metric family failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// alertCounts returns a value for every rule kind, including zeroes, so
// the series exist from the first scrape.
func alertCounts(snap engine.Snapshot) map[string]float64 {
	out := make(map[string]float64, len(engine.Kinds))
	for _, k := range engine.Kinds {
		out[string(k)] = float64(snap.AlertsFired[k])
	}
	return out
}

func uintMap(in map[string]uint64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = float64(v)
	}
	return out
}

// counterFamily builds a counter MetricFamily with one series per value.
// labelName may be empty for a single unlabelled series.
func counterFamily(name, help, labelName string, values map[string]float64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, lv := range sortedKeys(values) {
		m := &dto.Metric{Counter: &dto.Counter{Value: f64Ptr(values[lv])}}
		if labelName != "" {
			m.Label = []*dto.LabelPair{{Name: strPtr(labelName), Value: strPtr(lv)}}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// gaugeFamily builds a gauge MetricFamily with one series per value.
func gaugeFamily(name, help, labelName string, values map[string]float64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, lv := range sortedKeys(values) {
		m := &dto.Metric{Gauge: &dto.Gauge{Value: f64Ptr(values[lv])}}
		if labelName != "" {
			m.Label = []*dto.LabelPair{{Name: strPtr(labelName), Value: strPtr(lv)}}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// sortedKeys keeps series order stable across scrapes.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }
