// Package telemetry exposes run metrics through Prometheus and run/file
// spans through OpenTelemetry.
//
// Metrics live on a private registry rather than the global one, so several
// runs (or tests) in one process never collide, and a run's metrics can be
// written to a node_exporter textfile when it finishes.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "deserialize_bench"
	fileSubsystem    = "file"
	runSubsystem     = "run"
)

// Outcome label values for FilesTotal.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeFastPath  = "fast_path"
)

// Metrics holds all Prometheus metrics for a benchmark process.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// FilesTotal counts attempted files by outcome.
	FilesTotal *prometheus.CounterVec

	// FailuresTotal counts failed files by failure kind.
	FailuresTotal *prometheus.CounterVec

	// BytesTotal counts bytes of successfully processed files.
	BytesTotal prometheus.Counter

	// SubUnitsTotal counts sub-units of successfully parsed documents.
	SubUnitsTotal prometheus.Counter

	// FileDurationSeconds measures read+parse time per file.
	FileDurationSeconds *prometheus.HistogramVec

	// FileSizeBytes is the size distribution of processed files.
	FileSizeBytes prometheus.Histogram

	// RunDurationSeconds is the elapsed time of the last completed run.
	RunDurationSeconds prometheus.Gauge

	// RunsTotal counts completed runs by whether they were cancelled.
	RunsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "processed_total",
				Help:      "Files attempted by outcome",
			},
			[]string{"outcome"},
		),

		FailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "failures_total",
				Help:      "Failed files by failure kind",
			},
			[]string{"kind"},
		),

		BytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "bytes_total",
				Help:      "Bytes of successfully processed files",
			},
		),

		SubUnitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "subunits_total",
				Help:      "Sub-units of successfully parsed documents",
			},
		),

		FileDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "duration_seconds",
				Help:      "Read plus parse time per file",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"outcome"},
		),

		FileSizeBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: fileSubsystem,
				Name:      "size_bytes",
				Help:      "Size of successfully processed files",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),

		RunDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "duration_seconds",
				Help:      "Elapsed time of the last completed run",
			},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: runSubsystem,
				Name:      "completed_total",
				Help:      "Completed runs by cancellation state",
			},
			[]string{"cancelled"},
		),
	}
}

// Registry returns the registry all metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSuccess records one file that was read and parsed (or fast-pathed).
func (m *Metrics) ObserveSuccess(fastPath bool, size int64, subUnits int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSucceeded
	if fastPath {
		outcome = OutcomeFastPath
	}
	m.FilesTotal.WithLabelValues(outcome).Inc()
	m.BytesTotal.Add(float64(size))
	m.SubUnitsTotal.Add(float64(subUnits))
	m.FileSizeBytes.Observe(float64(size))
	m.FileDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveFailure records one failed file.
func (m *Metrics) ObserveFailure(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(OutcomeFailed).Inc()
	m.FailuresTotal.WithLabelValues(kind).Inc()
	m.FileDurationSeconds.WithLabelValues(OutcomeFailed).Observe(elapsed.Seconds())
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(elapsed time.Duration, cancelled bool) {
	if m == nil {
		return
	}
	m.RunDurationSeconds.Set(elapsed.Seconds())
	m.RunsTotal.WithLabelValues(fmt.Sprint(cancelled)).Inc()
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// atomically, for collection by node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
