// Package metrics holds the Prometheus instruments for collection and
// analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wrestlepulse"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves the registry.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Recorder groups the application metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	ItemsCollected    *prometheus.CounterVec
	CollectErrors     *prometheus.CounterVec
	AnalysisRuns      *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	Mentions          prometheus.Counter
	WrestlersAnalyzed prometheus.Gauge
}

// NewRecorder creates and registers the metrics on the given registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ItemsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_collected_total",
			Help:      "New content items stored, by kind.",
		}, []string{"kind"}),
		CollectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collect_errors_total",
			Help:      "Failed source fetches, by kind.",
		}, []string{"kind"}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs, by result.",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_run_duration_seconds",
			Help:      "Duration of analysis runs in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Mentions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_total",
			Help:      "Wrestler mentions found across all runs.",
		}),
		WrestlersAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wrestlers_analyzed",
			Help:      "Wrestlers with at least one mention in the latest run.",
		}),
	}

	reg.MustRegister(r.ItemsCollected, r.CollectErrors, r.AnalysisRuns, r.RunDuration, r.Mentions, r.WrestlersAnalyzed)
	return r
}

// ObserveCollect records the outcome of fetching one source.
func (r *Recorder) ObserveCollect(kind string, added int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.CollectErrors.WithLabelValues(kind).Inc()
		return
	}
	r.ItemsCollected.WithLabelValues(kind).Add(float64(added))
}

// ObserveRun records a finished analysis run.
func (r *Recorder) ObserveRun(d time.Duration, wrestlers, mentions int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.AnalysisRuns.WithLabelValues("error").Inc()
		return
	}
	r.AnalysisRuns.WithLabelValues("ok").Inc()
	r.RunDuration.Observe(d.Seconds())
	r.Mentions.Add(float64(mentions))
	r.WrestlersAnalyzed.Set(float64(wrestlers))
}
