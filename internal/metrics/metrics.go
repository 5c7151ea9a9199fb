// Package metrics exports render run statistics in the Prometheus text
// format, for collection through node-exporter's textfile collector.
package metrics

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeycumines/renderdemo/internal/storage"
)

const namespace = "renderdemo"

// Recorder holds one registry's worth of run metrics. A process renders at
// most one demo, so counters are rebuilt from the run history each time
// rather than kept in memory.
type Recorder struct {
	reg *prometheus.Registry

	runs      *prometheus.CounterVec
	duration  prometheus.Gauge
	finished  prometheus.Gauge
	exitCode  prometheus.Gauge
	markers   prometheus.Gauge
	ticks     prometheus.Gauge
	succeeded prometheus.Gauge

	last time.Time
}

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Render runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run.",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished.",
		}),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_exit_code",
			Help:      "Exit status of the most recent run.",
		}),
		markers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_progress_markers",
			Help:      "Progress markers observed during the most recent run.",
		}),
		ticks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_ticks",
			Help:      "Demo ticks covered by the most recent run.",
		}),
		succeeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the most recent run completed, 0 otherwise.",
		}),
	}
	r.reg.MustRegister(r.runs, r.duration, r.finished, r.exitCode, r.markers, r.ticks, r.succeeded)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observe counts rec and, if it is the newest run seen so far, publishes it
// as the last run.
func (r *Recorder) Observe(rec storage.RunRecord) {
	r.runs.WithLabelValues(rec.Outcome).Inc()
	if !r.last.IsZero() && rec.FinishedAt.Before(r.last) {
		return
	}
	r.last = rec.FinishedAt
	r.duration.Set(rec.Duration().Seconds())
	r.finished.Set(float64(rec.FinishedAt.UnixNano()) / 1e9)
	r.exitCode.Set(float64(rec.ExitCode))
	r.markers.Set(float64(rec.Markers))
	r.ticks.Set(float64(rec.EndTick - rec.StartTick))
	if rec.ExitCode == 0 {
		r.succeeded.Set(1)
	} else {
		r.succeeded.Set(0)
	}
}

// WriteTextfile writes every registered metric to path, atomically, in the
// format node-exporter expects.
func (r *Recorder) WriteTextfile(path string) error {
	if filepath.Ext(path) != ".prom" {
		return fmt.Errorf("metrics: textfile %q must end in .prom", path)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Export builds a Recorder from records, plus current when it is not part
// of them, and writes it to path.
func Export(path string, records []storage.RunRecord, current *storage.RunRecord) error {
	r := NewRecorder()
	seen := false
	for _, rec := range records {
		if current != nil && rec.Key == current.Key {
			seen = true
		}
		r.Observe(rec)
	}
	if current != nil && !seen {
		r.Observe(*current)
	}
	return r.WriteTextfile(path)
}
