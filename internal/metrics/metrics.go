package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cronreg",
			Subsystem: "registrar",
			Name:      "runs_total",
			Help:      "Number of registrar runs by operation and outcome.",
		}, []string{"op", "outcome"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cronreg",
			Subsystem: "registrar",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one read-filter-write cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"},
	)
	removedEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cronreg",
			Subsystem: "registrar",
			Name:      "removed_entries_total",
			Help:      "Crontab lines removed because they contained the job marker.",
		}, []string{"op"},
	)
	tableEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cronreg",
			Subsystem: "crontab",
			Name:      "entries",
			Help:      "Number of lines in the crontab after the last successful write.",
		},
	)
	lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cronreg",
			Subsystem: "registrar",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per operation.",
		}, []string{"op"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{runsTotal, runDuration, removedEntries, tableEntries, lastSuccess}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for node_exporter's textfile collector. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by the registrar to record metrics.
// They no-op if Register hasn't been called.

func IncRun(op, outcome string) {
	if regOK.Load() {
		runsTotal.WithLabelValues(op, outcome).Inc()
	}
}

func ObserveRunDuration(op string, seconds float64) {
	if regOK.Load() {
		runDuration.WithLabelValues(op).Observe(seconds)
	}
}

func AddRemoved(op string, n int) {
	if regOK.Load() && n > 0 {
		removedEntries.WithLabelValues(op).Add(float64(n))
	}
}

func SetTableEntries(n int) {
	if regOK.Load() {
		tableEntries.Set(float64(n))
	}
}

func SetLastSuccess(op string, t time.Time) {
	if regOK.Load() {
		lastSuccess.WithLabelValues(op).Set(float64(t.Unix()))
	}
}
