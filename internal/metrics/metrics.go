// Package metrics exposes Prometheus counters for template imports.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder publishes import outcomes. A nil *Recorder records nothing.
type Recorder struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	samples  prometheus.Counter
	values   prometheus.Counter
}

// New registers the import metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icpw",
			Name:      "imports_total",
			Help:      "Template imports by outcome.",
		}, []string{"result", "dry_run"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "icpw",
			Name:      "import_duration_seconds",
			Help:      "Wall time of template imports.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icpw",
			Name:      "water_samples_inserted_total",
			Help:      "Water samples written by committed imports.",
		}),
		values: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "icpw",
			Name:      "chemistry_values_inserted_total",
			Help:      "Chemistry values written by committed imports.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.duration, r.samples, r.values)
	}
	return r
}

// ObserveRun records one finished import. result is an error kind or "ok".
func (r *Recorder) ObserveRun(result string, dryRun bool, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(result, strconv.FormatBool(dryRun)).Inc()
	r.duration.Observe(d.Seconds())
}

// AddInserted counts rows written by a committed import.
func (r *Recorder) AddInserted(samples, values int64) {
	if r == nil {
		return
	}
	r.samples.Add(float64(samples))
	r.values.Add(float64(values))
}
