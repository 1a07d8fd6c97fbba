// Package metrics exposes release generation counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/ports"
)

type Prometheus struct {
	exports         *prometheus.CounterVec
	exportDuration  *prometheus.HistogramVec
	batches         *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	batchItems      *prometheus.CounterVec
	packages        *prometheus.CounterVec
	packagedEntries prometheus.Counter
}

var _ ports.ReleaseMetrics = (*Prometheus)(nil)

// NewPrometheus registers the collectors on reg; pass prometheus.DefaultRegisterer
// to serve them from promhttp.Handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "exports_total",
			Help:      "Export bridge calls by kind and outcome.",
		}, []string{"kind", "success"}),
		exportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "export_duration_seconds",
			Help:      "Export bridge call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "batches_total",
			Help:      "Completed generation batches by resulting status.",
		}, []string{"status"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "batch_duration_seconds",
			Help:      "Generation batch wall time.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		batchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "batch_files_total",
			Help:      "Files generated or failed across batches.",
		}, []string{"outcome"}),
		packages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "packages_total",
			Help:      "Packaging attempts by outcome.",
		}, []string{"success"}),
		packagedEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pdm",
			Subsystem: "release",
			Name:      "packaged_files_total",
			Help:      "Files written into release archives.",
		}),
	}
}

func (p *Prometheus) ObserveExport(kind domainrfq.ExportKind, success bool, duration time.Duration) {
	p.exports.WithLabelValues(string(kind), strconv.FormatBool(success)).Inc()
	p.exportDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveBatch(status domainrfq.Status, successCount int, failureCount int, duration time.Duration) {
	p.batches.WithLabelValues(string(status)).Inc()
	p.batchDuration.Observe(duration.Seconds())
	p.batchItems.WithLabelValues("generated").Add(float64(successCount))
	p.batchItems.WithLabelValues("failed").Add(float64(failureCount))
}

func (p *Prometheus) ObservePackage(success bool, fileCount int) {
	p.packages.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success {
		p.packagedEntries.Add(float64(fileCount))
	}
}
