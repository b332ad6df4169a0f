package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cleared-dev/runbal/internal/balance"
)

// Recorder holds the collectors of one run. Each Recorder owns its registry,
// so runs in the same process do not share counters.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	partitionDuration prometheus.Histogram
	partitionEvents   prometheus.Histogram
	consumers         prometheus.Gauge
	tableRows         *prometheus.GaugeVec
	excludedRows      *prometheus.GaugeVec
	excludedConsumers prometheus.Gauge
	lastSuccess       prometheus.Gauge
}

var _ balance.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder. runID is attached to every series as a
// constant label.
func NewRecorder(runID string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run_id": runID}, reg))

	return &Recorder{
		registry: reg,
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runbal_stage_duration_seconds",
			Help:    "Duration of each reconstruction stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		partitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runbal_partition_duration_seconds",
			Help:    "Time spent reconstructing one consumer",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		partitionEvents: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runbal_partition_events",
			Help:    "Rows in one consumer's full timeline",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		consumers: f.NewGauge(prometheus.GaugeOpts{
			Name: "runbal_consumers_reconstructed",
			Help: "Consumers with a reconstructed timeline",
		}),
		tableRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "runbal_output_rows",
			Help: "Rows written per output table",
		}, []string{"table"}),
		excludedRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "runbal_excluded_rows",
			Help: "Input rows excluded from reconstruction",
		}, []string{"reason"}),
		excludedConsumers: f.NewGauge(prometheus.GaugeOpts{
			Name: "runbal_excluded_consumers",
			Help: "Consumers excluded for lack of a balance snapshot",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "runbal_last_success_timestamp_seconds",
			Help: "Unix time the run completed",
		}),
	}
}

// ObserveStage records the duration of a pipeline stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObservePartition records one consumer's reconstruction.
func (r *Recorder) ObservePartition(events int, d time.Duration) {
	r.partitionDuration.Observe(d.Seconds())
	r.partitionEvents.Observe(float64(events))
}

// RecordResult sets the outcome gauges from a finished run.
func (r *Recorder) RecordResult(res *balance.Result, finished time.Time) {
	r.consumers.Set(float64(len(res.Consumers)))

	rep := res.Report
	r.excludedRows.WithLabelValues("integrity").Set(float64(len(rep.Integrity)))
	r.excludedRows.WithLabelValues("duplicate").Set(float64(rep.DuplicateTransactions))
	r.excludedRows.WithLabelValues("outside_roster").Set(float64(rep.OutsideRoster))
	r.excludedRows.WithLabelValues("zero_on_anchor_date").Set(float64(rep.ZeroOnAnchorDate))
	r.excludedConsumers.Set(float64(rep.ExcludedConsumers()))
	r.lastSuccess.Set(float64(finished.Unix()))
}

// RecordTable sets the row count of an output table.
func (r *Recorder) RecordTable(name string, rows int) {
	r.tableRows.WithLabelValues(name).Set(float64(rows))
}

// Gatherer exposes the registry for tests and custom exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
