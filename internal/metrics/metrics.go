// Package metrics exposes Prometheus instrumentation for snapshot, restore
// and retention runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "snapback"

// Trigger labels.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Recorder owns a private registry with the run collectors. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	backupRuns      *prometheus.CounterVec
	backupDuration  prometheus.Histogram
	backupSize      prometheus.Gauge
	lastSuccess     prometheus.Gauge
	restoreRuns     *prometheus.CounterVec
	prunedArchives  prometheus.Counter
	pruneFileErrors prometheus.Counter
}

// New registers the run collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_runs_total",
			Help:      "Snapshot runs by result and trigger",
		}, []string{"result", "trigger"}),
		backupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Wall time of snapshot runs",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 900, 1800},
		}),
		backupSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_size_bytes",
			Help:      "Size of the most recent encrypted archive",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backup_last_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful snapshot",
		}),
		restoreRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_runs_total",
			Help:      "Restore runs by result",
		}, []string{"result"}),
		prunedArchives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_archives_total",
			Help:      "Catalog records removed by retention",
		}),
		pruneFileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prune_file_errors_total",
			Help:      "Archive files retention failed to delete",
		}),
	}
	r.registry.MustRegister(
		r.backupRuns,
		r.backupDuration,
		r.backupSize,
		r.lastSuccess,
		r.restoreRuns,
		r.prunedArchives,
		r.pruneFileErrors,
	)
	return r
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveBackup records one finished snapshot run. size is ignored on failure.
func (r *Recorder) ObserveBackup(trigger string, elapsed time.Duration, size int64, err error) {
	if r == nil {
		return
	}
	r.backupRuns.WithLabelValues(result(err), trigger).Inc()
	r.backupDuration.Observe(elapsed.Seconds())
	if err == nil {
		r.backupSize.Set(float64(size))
		r.lastSuccess.SetToCurrentTime()
	}
}

// ObserveRestore records one finished restore run.
func (r *Recorder) ObserveRestore(err error) {
	if r == nil {
		return
	}
	r.restoreRuns.WithLabelValues(result(err)).Inc()
}

// ObservePrune records the outcome of one retention pass.
func (r *Recorder) ObservePrune(deleted, fileErrors int) {
	if r == nil {
		return
	}
	r.prunedArchives.Add(float64(deleted))
	r.pruneFileErrors.Add(float64(fileErrors))
}

// Registry returns the underlying registry, or nil for a nil Recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
