// Package metrics exports the outcome of a run as Prometheus metrics: to a
// textfile for the node exporter collector, to a Pushgateway, or over HTTP
// while watching.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	runmetrics "github.com/abdul-hamid-achik/snot/packages/metrics"
)

const MetricsNamespace = "snot"

// Exporter holds the metrics of the last observed run in its own registry.
type Exporter struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	project  string
	now      func() time.Time

	results      *prometheus.GaugeVec
	unfinished   *prometheus.GaugeVec
	passRate     *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
	testDuration *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
}

type Option func(*Exporter)

// WithClock overrides the clock used for the last run timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an exporter labelling every series with project.
func NewExporter(project string, opts ...Option) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := []string{"project"}

	e := &Exporter{
		registry: reg,
		project:  project,
		now:      time.Now,

		results: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "results",
			Help:      "Finished results of the last run by outcome",
		}, []string{"project", "outcome"}),
		unfinished: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "results_unfinished",
			Help:      "Results of the last run that never finished",
		}, labels),
		passRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "pass_rate",
			Help:      "Share of finished results that passed in the last run",
		}, labels),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}, labels),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}, labels),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of finished tests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, labels),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Runs observed by this process",
		}, []string{"project", "result"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Observe replaces the per-run series with the outcome of a run.
func (e *Exporter) Observe(records []*runner.ResultRecord, summary *runmetrics.Summary, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.results.Reset()
	e.testDuration.Reset()

	for outcome, n := range summary.Outcomes {
		e.results.WithLabelValues(e.project, outcome.String()).Set(float64(n))
	}
	for _, rec := range records {
		if rec.Status == runner.Finished {
			e.testDuration.WithLabelValues(e.project).Observe(float64(rec.DurationMillis) / 1000)
		}
	}
	e.unfinished.WithLabelValues(e.project).Set(float64(summary.Unfinished))
	e.passRate.WithLabelValues(e.project).Set(summary.PassRate)
	e.runDuration.WithLabelValues(e.project).Set(d.Seconds())
	e.lastRun.WithLabelValues(e.project).Set(float64(e.now().Unix()))

	result := "passed"
	if summary.Failed > 0 {
		result = "failed"
	}
	e.runsTotal.WithLabelValues(e.project, result).Inc()
}

// Gatherer exposes the registry.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}
