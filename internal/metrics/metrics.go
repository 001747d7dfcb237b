// Package metrics counts what a run did and exports it in the Prometheus text
// format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fenilsonani/agesweep/internal/cleaner"
	"github.com/fenilsonani/agesweep/internal/scanner"
)

const namespace = "agesweep"

// Recorder contains the Prometheus metrics for one run. Each Recorder owns
// its registry so runs and tests never share state.
type Recorder struct {
	registry *prometheus.Registry

	// Scan
	filesClassified *prometheus.CounterVec
	scanDuration    prometheus.Gauge

	// Actions
	actions        *prometheus.CounterVec
	failures       *prometheus.CounterVec
	bytesProcessed prometheus.Counter
	notAttempted   prometheus.Gauge

	// Run
	runDuration prometheus.Gauge
	lastRunTime prometheus.Gauge
	runOutcome  *prometheus.GaugeVec
}

// New creates a Recorder with a fresh registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		filesClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_classified_total",
				Help:      "Files seen by the scan, by classification",
			},
			[]string{"class"},
		),

		scanDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Wall time of the last scan",
			},
		),

		actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Archive or delete attempts, by action and result",
			},
			[]string{"action", "result"},
		),

		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_failures_total",
				Help:      "Failed actions, by reason",
			},
			[]string{"reason"},
		),

		bytesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_processed_total",
				Help:      "Bytes archived or deleted",
			},
		),

		notAttempted: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "files_not_attempted",
				Help:      "Planned files left untouched after cancellation",
			},
		),

		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of the last run",
			},
		),

		lastRunTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),

		runOutcome: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_outcome",
				Help:      "1 for the terminal state the last run finished in",
			},
			[]string{"state"},
		),
	}
}

// Registry returns the registry holding the run's metrics
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveScan records the classification counts of a scan
func (r *Recorder) ObserveScan(result *scanner.ScanResult, took time.Duration) {
	r.filesClassified.WithLabelValues("eligible").Add(float64(len(result.Eligible)))
	r.filesClassified.WithLabelValues("ineligible").Add(float64(len(result.Ineligible)))
	r.filesClassified.WithLabelValues("error").Add(float64(len(result.Errors)))
	r.filesClassified.WithLabelValues("skipped").Add(float64(len(result.Skipped)))
	r.scanDuration.Set(took.Seconds())
}

// ObserveOutcome records one file's action
func (r *Recorder) ObserveOutcome(action string, out cleaner.Outcome) {
	r.actions.WithLabelValues(action, out.Status.String()).Inc()
	if out.Failed() {
		r.failures.WithLabelValues(out.Err.Reason.String()).Inc()
		return
	}
	r.bytesProcessed.Add(float64(out.Size))
}

// ObserveRun records how the run ended
func (r *Recorder) ObserveRun(state string, notAttempted int, took time.Duration, finished time.Time) {
	r.notAttempted.Set(float64(notAttempted))
	r.runDuration.Set(took.Seconds())
	r.lastRunTime.Set(float64(finished.Unix()))
	r.runOutcome.WithLabelValues(state).Set(1)
}

// WriteTextfile atomically writes every metric to path
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
