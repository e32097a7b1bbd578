// Package metrics records ingestion run metrics in a Prometheus registry and
// optionally pushes them to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

const namespace = "sepa"

// Recorder is the set of collectors for one importer process.
type Recorder struct {
	registry *prometheus.Registry

	archives      *prometheus.CounterVec
	rowsStaged    prometheus.Counter
	rowsRejected  *prometheus.CounterVec
	rowsCompacted prometheus.Gauge
	merchants     prometheus.Gauge
	listings      prometheus.Gauge
	phaseDuration *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
	runFailed     prometheus.Gauge
}

// NewRecorder registers the importer collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		archives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "merchant_archives_total",
				Help:      "Merchant archives seen, by outcome",
			},
			[]string{"outcome"},
		),
		rowsStaged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_staged_total",
			Help:      "Listing rows bulk-loaded into staging",
		}),
		rowsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "rows_rejected_total",
				Help:      "Listing rows rejected by the normalizer, by reason",
			},
			[]string{"reason"},
		),
		rowsCompacted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_compacted",
			Help:      "Rows moved from staging to the final listing table by the last run",
		}),
		merchants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "merchants",
			Help:      "Merchant registry size after the last successful run",
		}),
		listings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "listings",
			Help:      "Final listing table size after the last successful run",
		}),
		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "phase_duration_seconds",
				Help:      "Wall time spent in each pipeline phase",
			},
			[]string{"phase"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that reached DONE",
		}),
		runFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "run_failed",
			Help:      "1 when the last run ended in FAILED",
		}),
	}

	r.registry.MustRegister(
		r.archives, r.rowsStaged, r.rowsRejected, r.rowsCompacted,
		r.merchants, r.listings, r.phaseDuration, r.lastSuccess, r.runFailed,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ArchiveOutcome counts one merchant archive as processed, skipped or failed.
func (r *Recorder) ArchiveOutcome(outcome string) {
	r.archives.WithLabelValues(outcome).Inc()
}

// Staged adds n staged rows.
func (r *Recorder) Staged(n int) {
	r.rowsStaged.Add(float64(n))
}

// Rejected adds per-reason rejection counts.
func (r *Recorder) Rejected(rej models.Rejections) {
	for reason, n := range rej {
		r.rowsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}
}

// Compacted sets the compaction result.
func (r *Recorder) Compacted(n int64) {
	r.rowsCompacted.Set(float64(n))
}

// Phase records how long phase took.
func (r *Recorder) Phase(phase string, d time.Duration) {
	r.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// Done records final store sizes and the success timestamp.
func (r *Recorder) Done(merchants, listings int64, at time.Time) {
	r.merchants.Set(float64(merchants))
	r.listings.Set(float64(listings))
	r.lastSuccess.Set(float64(at.Unix()))
	r.runFailed.Set(0)
}

// Failed flags the run as failed.
func (r *Recorder) Failed() {
	r.runFailed.Set(1)
}

// Push sends the registry to a Pushgateway under the sepa_import job.
// An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, "sepa_import").Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
